package cart_test

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/chorbazzar/internal/domain/cart"
	"github.com/xenking/chorbazzar/internal/domain/pricing"
	"github.com/xenking/chorbazzar/internal/domain/product"
	"github.com/xenking/chorbazzar/internal/notify"
	"github.com/xenking/chorbazzar/internal/storage/memory"
)

type cartFeature struct {
	catalog map[string]product.Product
	store   *cart.Store
	notes   []string
	result  pricing.PromoResult
}

func (f *cartFeature) theCatalog(table *godog.Table) error {
	f.catalog = make(map[string]product.Product)
	for _, row := range table.Rows[1:] {
		price, err := decimal.NewFromString(row.Cells[2].Value)
		if err != nil {
			return err
		}
		p := product.Product{ID: row.Cells[0].Value, Title: row.Cells[1].Value, Price: price, Stock: 10}
		f.catalog[p.ID] = p
	}
	return nil
}

func (f *cartFeature) anEmptyCart(ctx context.Context) error {
	f.notes = nil
	s, err := cart.NewStore(ctx, cart.Options{
		Storage:  memory.New(),
		Key:      "feature",
		Notifier: notify.Func(func(m string) { f.notes = append(f.notes, m) }),
	})
	f.store = s
	return err
}

func (f *cartFeature) iAddOfProduct(ctx context.Context, qty int, id string) error {
	p, ok := f.catalog[id]
	if !ok {
		return errors.Errorf("unknown product %q", id)
	}
	return f.store.AddToCart(ctx, p, qty)
}

func (f *cartFeature) iRemoveProduct(ctx context.Context, id string) error {
	f.store.RemoveFromCart(ctx, id)
	return nil
}

func (f *cartFeature) iApplyThePromoCode(ctx context.Context, code string) error {
	res, err := f.store.ApplyPromoCode(ctx, code)
	f.result = res
	return err
}

func (f *cartFeature) theCartHasLineItems(n int) error {
	if got := len(f.store.Items()); got != n {
		return errors.Errorf("expected %d line items, got %d", n, got)
	}
	return nil
}

func (f *cartFeature) productHasQuantity(id string, qty int) error {
	for _, li := range f.store.Items() {
		if li.ProductID == id {
			if li.Quantity != qty {
				return errors.Errorf("expected quantity %d, got %d", qty, li.Quantity)
			}
			return nil
		}
	}
	return errors.Errorf("product %q not in cart", id)
}

func expectAmount(name, want string, got decimal.Decimal) error {
	w, err := decimal.NewFromString(want)
	if err != nil {
		return err
	}
	if !w.Equal(got) {
		return fmt.Errorf("expected %s %s, got %s", name, w, got)
	}
	return nil
}

func (f *cartFeature) theSubtotalIs(v string) error {
	return expectAmount("subtotal", v, f.store.Subtotal())
}

func (f *cartFeature) theDiscountIs(v string) error {
	return expectAmount("discount", v, f.store.DiscountAmount())
}

func (f *cartFeature) shippingIs(v string) error {
	return expectAmount("shipping", v, f.store.Quote().Shipping)
}

func (f *cartFeature) thePromotionIsAccepted() error {
	if !f.result.Success {
		return errors.Errorf("promotion rejected: %s", f.result.Message)
	}
	return nil
}

func (f *cartFeature) thePromotionIsRejectedWith(fragment string) error {
	if f.result.Success {
		return errors.New("promotion accepted")
	}
	if !strings.Contains(f.result.Message, fragment) {
		return errors.Errorf("message %q does not contain %q", f.result.Message, fragment)
	}
	return nil
}

func (f *cartFeature) noPromotionIsActive() error {
	if code := f.store.PromoCode(); code != "" {
		return errors.Errorf("promotion %s still active", code)
	}
	return nil
}

func (f *cartFeature) aNotificationSays(msg string) error {
	if !slices.Contains(f.notes, msg) {
		return errors.Errorf("notification %q not emitted, got %q", msg, f.notes)
	}
	return nil
}

func (f *cartFeature) noNotificationSays(fragment string) error {
	for _, n := range f.notes {
		if strings.Contains(n, fragment) {
			return errors.Errorf("unexpected notification %q", n)
		}
	}
	return nil
}

func initializeScenario(sc *godog.ScenarioContext) {
	f := &cartFeature{}

	sc.Step(`^the catalog:$`, f.theCatalog)
	sc.Step(`^an empty cart$`, f.anEmptyCart)
	sc.Step(`^I add (\d+) of product "([^"]*)"$`, f.iAddOfProduct)
	sc.Step(`^I remove product "([^"]*)"$`, f.iRemoveProduct)
	sc.Step(`^I apply the promo code "([^"]*)"$`, f.iApplyThePromoCode)

	sc.Step(`^the cart has (\d+) line items?$`, f.theCartHasLineItems)
	sc.Step(`^product "([^"]*)" has quantity (\d+)$`, f.productHasQuantity)
	sc.Step(`^the subtotal is ([\d.]+)$`, f.theSubtotalIs)
	sc.Step(`^the discount is ([\d.]+)$`, f.theDiscountIs)
	sc.Step(`^shipping is ([\d.]+)$`, f.shippingIs)
	sc.Step(`^the promotion is accepted$`, f.thePromotionIsAccepted)
	sc.Step(`^the promotion is rejected with a message containing "([^"]*)"$`, f.thePromotionIsRejectedWith)
	sc.Step(`^no promotion is active$`, f.noPromotionIsActive)
	sc.Step(`^a notification says "([^"]*)"$`, f.aNotificationSays)
	sc.Step(`^no notification says "([^"]*)"$`, f.noNotificationSays)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
