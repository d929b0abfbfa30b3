// cmd/storefront/commands.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/orders"
	"storefront/internal/session"
	"storefront/internal/storefront"
)

type cli struct {
	app *storefront.App
	out io.Writer
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.out)
	return fs
}

func (c *cli) table() *tabwriter.Writer {
	return tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
}

func (c *cli) products(ctx context.Context, args []string) error {
	fs := c.flags("products")
	search := fs.String("search", "", "case-insensitive product name substring")
	category := fs.String("category", catalog.AllCategories, "category to list")
	sortBy := fs.String("sort", string(catalog.SortDefault), "sort order")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := c.app.Catalog.Err(); err != nil {
		return fmt.Errorf("catalog unavailable: %w", err)
	}

	products := c.app.Catalog.Query(catalog.Filter{
		Search:   *search,
		Category: *category,
		Sort:     catalog.Sort(*sortBy),
	})

	tw := c.table()
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK\t")
	for _, p := range products {
		stock := strconv.Itoa(p.Stock)
		if !p.InStock() {
			stock = "out of stock"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", p.ID, p.Name, p.Category, cart.FormatMoney(p.Price), stock)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%d products\n", len(products))
	return nil
}

func (c *cli) product(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: storefront product <id>")
	}
	p, err := c.app.Catalog.Product(args[0])
	if err != nil {
		return err
	}

	tw := c.table()
	fmt.Fprintf(tw, "ID\t%s\n", p.ID)
	fmt.Fprintf(tw, "Name\t%s\n", p.Name)
	fmt.Fprintf(tw, "Category\t%s\n", p.Category)
	fmt.Fprintf(tw, "Price\t%s\n", cart.FormatMoney(p.Price))
	fmt.Fprintf(tw, "Stock\t%d\n", p.Stock)
	fmt.Fprintf(tw, "Featured\t%t\n", p.Featured)
	fmt.Fprintf(tw, "Description\t%s\n", p.Description)
	return tw.Flush()
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := c.flags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errors.New("-email and -password are required")
	}

	user, err := c.app.Session.Login(ctx, *email, *password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Fprintf(c.out, "Logged in as %s (%s)\n", user.DisplayName(), user.Role)
	return nil
}

func (c *cli) register(ctx context.Context, args []string) error {
	fs := c.flags("register")
	var req session.RegisterRequest
	fs.StringVar(&req.Email, "email", "", "account email")
	fs.StringVar(&req.Password, "password", "", "account password")
	fs.StringVar(&req.FirstName, "first", "", "first name")
	fs.StringVar(&req.LastName, "last", "", "last name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if req.Email == "" || req.Password == "" {
		return errors.New("-email and -password are required")
	}

	user, err := c.app.Session.Register(ctx, req)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	fmt.Fprintf(c.out, "Welcome, %s\n", user.DisplayName())
	return nil
}

func (c *cli) logout(ctx context.Context, args []string) error {
	if err := c.app.Session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Logged out")
	return nil
}

func (c *cli) whoami(ctx context.Context, args []string) error {
	user := c.app.Session.User()
	if user == nil {
		fmt.Fprintln(c.out, "Not logged in")
		return nil
	}
	tw := c.table()
	fmt.Fprintf(tw, "Name\t%s\n", user.DisplayName())
	fmt.Fprintf(tw, "Email\t%s\n", user.Email)
	fmt.Fprintf(tw, "Role\t%s\n", user.Role)
	fmt.Fprintf(tw, "Admin\t%t\n", user.IsAdmin())
	return tw.Flush()
}

func (c *cli) showCart(ctx context.Context, args []string) error {
	if c.app.Cart.IsEmpty() {
		fmt.Fprintln(c.out, "Your cart is empty")
		return nil
	}

	tw := c.table()
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tPRICE\tSUBTOTAL\t")
	for _, l := range c.app.Cart.Lines() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t\n",
			l.ProductID, l.Name, l.Quantity, cart.FormatMoney(l.Price), cart.FormatMoney(l.Subtotal()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return c.printSummary(c.app.Cart.Summary(c.app.TaxRate))
}

func (c *cli) printSummary(s cart.Summary) error {
	tw := c.table()
	fmt.Fprintf(tw, "Items\t%d\n", s.ItemCount)
	fmt.Fprintf(tw, "Subtotal\t%s\n", cart.FormatMoney(s.Subtotal))
	fmt.Fprintf(tw, "Shipping\tFree\n")
	fmt.Fprintf(tw, "Tax\t%s\n", cart.FormatMoney(s.Tax))
	fmt.Fprintf(tw, "Total\t%s\n", cart.FormatMoney(s.Total))
	return tw.Flush()
}

func (c *cli) warnIfEphemeral() {
	if !c.app.Config.Cart.Persist {
		c.app.Logger.Warn("cart persistence is off, set STOREFRONT_CART_PERSIST=true to keep the cart between commands")
	}
}

func (c *cli) cartAdd(ctx context.Context, args []string) error {
	fs := c.flags("cart-add")
	id := fs.String("id", "", "product id")
	qty := fs.Int("qty", 1, "quantity to add")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c.warnIfEphemeral()

	p, err := c.app.Catalog.Product(*id)
	if err != nil {
		return err
	}
	if *qty < 1 {
		return errors.New("-qty must be at least 1")
	}
	c.app.Cart.Add(p, *qty)
	fmt.Fprintf(c.out, "Added %d x %s, cart has %d items\n", *qty, p.Name, c.app.Cart.ItemCount())
	return nil
}

func (c *cli) cartSet(ctx context.Context, args []string) error {
	fs := c.flags("cart-set")
	id := fs.String("id", "", "product id")
	qty := fs.Int("qty", 1, "new quantity, 0 removes the line")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c.warnIfEphemeral()

	if _, ok := c.app.Cart.Line(*id); !ok {
		return fmt.Errorf("product %q is not in the cart", *id)
	}
	c.app.Cart.UpdateQuantity(*id, *qty)
	fmt.Fprintf(c.out, "Cart has %d items\n", c.app.Cart.ItemCount())
	return nil
}

func (c *cli) cartRemove(ctx context.Context, args []string) error {
	fs := c.flags("cart-remove")
	id := fs.String("id", "", "product id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c.warnIfEphemeral()

	c.app.Cart.Remove(*id)
	fmt.Fprintf(c.out, "Cart has %d items\n", c.app.Cart.ItemCount())
	return nil
}

func (c *cli) checkout(ctx context.Context, args []string) error {
	fs := c.flags("checkout")
	address := fs.String("address", "", "shipping address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := c.app.Session.RequireRole("")
	if err != nil {
		return errors.New("Please log in to checkout")
	}
	summary := c.app.Cart.Summary(c.app.TaxRate)

	order, err := c.app.Orders.PlaceOrder(ctx, user, c.app.Cart, *address)
	if err != nil {
		return fmt.Errorf("checkout failed: %w", err)
	}
	fmt.Fprintf(c.out, "Order %s placed, status %s\n", order.ID, order.Status)
	return c.printSummary(summary)
}

func (c *cli) orders(ctx context.Context, args []string) error {
	fs := c.flags("orders")
	search := fs.String("search", "", "match order id, customer name or email")
	status := fs.String("status", orders.AllStatuses, "status to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := c.app.Session.RequireRole("")
	if err != nil {
		return err
	}
	if err := c.app.Orders.Load(ctx); err != nil {
		return fmt.Errorf("could not load orders: %w", err)
	}

	var list []orders.Order
	if user.IsAdmin() {
		list = c.app.Orders.Filter(*search, *status)
	} else {
		list = c.app.Orders.MyOrders(user.Email)
	}

	tw := c.table()
	fmt.Fprintln(tw, "ID\tDATE\tCUSTOMER\tITEMS\tTOTAL\tSTATUS\t")
	for _, o := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t\n",
			o.ID, o.Date, o.Customer.Name, len(o.Items), cart.FormatMoney(o.Total), o.Status)
	}
	return tw.Flush()
}

// productFlags registers the editable product fields on fs.
type productFlags struct {
	name, description, category, image, price string
	stock                                     int
	featured                                  bool
}

func (pf *productFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&pf.name, "name", "", "product name")
	fs.StringVar(&pf.description, "description", "", "product description")
	fs.StringVar(&pf.category, "category", "", "category")
	fs.StringVar(&pf.image, "image", "", "image URL")
	fs.StringVar(&pf.price, "price", "0", "unit price")
	fs.IntVar(&pf.stock, "stock", 0, "units in stock")
	fs.BoolVar(&pf.featured, "featured", false, "feature on the home page")
}

// apply copies the flags that were set on the command line onto in.
func (pf *productFlags) apply(fs *flag.FlagSet, in catalog.ProductInput) (catalog.ProductInput, error) {
	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			in.Name = pf.name
		case "description":
			in.Description = pf.description
		case "category":
			in.Category = pf.category
		case "image":
			in.ImageURL = pf.image
		case "stock":
			in.Stock = pf.stock
		case "featured":
			in.Featured = pf.featured
		case "price":
			var price decimal.Decimal
			price, err = decimal.NewFromString(strings.TrimPrefix(pf.price, "$"))
			if err != nil {
				err = fmt.Errorf("invalid -price %q", pf.price)
			}
			in.Price = price
		}
	})
	return in, err
}

func (c *cli) requireAdmin() error {
	if _, err := c.app.Session.RequireRole(session.RoleAdmin); err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			return errors.New("Please log in with an admin account")
		}
		return errors.New("This command requires an admin account")
	}
	return nil
}

func (c *cli) adminAdd(ctx context.Context, args []string) error {
	fs := c.flags("admin-add")
	var pf productFlags
	pf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.requireAdmin(); err != nil {
		return err
	}

	input, err := pf.apply(fs, catalog.ProductInput{})
	if err != nil {
		return err
	}
	p, err := c.app.Catalog.AddProduct(ctx, input)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Added product %s (%s)\n", p.ID, p.Name)
	return nil
}

func (c *cli) adminUpdate(ctx context.Context, args []string) error {
	fs := c.flags("admin-update")
	id := fs.String("id", "", "product id")
	var pf productFlags
	pf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.requireAdmin(); err != nil {
		return err
	}

	existing, err := c.app.Catalog.Product(*id)
	if err != nil {
		return err
	}
	input, err := pf.apply(fs, catalog.InputOf(existing))
	if err != nil {
		return err
	}
	p, err := c.app.Catalog.UpdateProduct(ctx, *id, input)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Updated product %s (%s)\n", p.ID, p.Name)
	return nil
}

func (c *cli) adminDelete(ctx context.Context, args []string) error {
	fs := c.flags("admin-delete")
	id := fs.String("id", "", "product id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.requireAdmin(); err != nil {
		return err
	}

	if err := c.app.Catalog.DeleteProduct(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Deleted product %s\n", *id)
	return nil
}

func (c *cli) adminOrderStatus(ctx context.Context, args []string) error {
	fs := c.flags("admin-order-status")
	id := fs.String("id", "", "order id")
	raw := fs.String("status", "", "Processing, In Transit, Delivered or Cancelled")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.requireAdmin(); err != nil {
		return err
	}

	status, err := orders.ParseStatus(*raw)
	if err != nil {
		return err
	}
	order, err := c.app.Orders.UpdateStatus(ctx, *id, status)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Order %s is now %s\n", order.ID, order.Status)
	return nil
}

func (c *cli) dashboard(ctx context.Context, args []string) error {
	if err := c.requireAdmin(); err != nil {
		return err
	}
	d := c.app.Catalog.Dashboard()

	tw := c.table()
	fmt.Fprintf(tw, "Products\t%d\n", d.TotalProducts)
	fmt.Fprintf(tw, "Featured\t%d\n", d.FeaturedCount)
	fmt.Fprintf(tw, "Inventory value\t%s\n", cart.FormatMoney(d.InventoryValue))
	fmt.Fprintf(tw, "Low stock\t%d\n", len(d.LowStock))
	for _, cc := range d.Categories {
		fmt.Fprintf(tw, "  %s\t%d\n", cc.Category, cc.Count)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, p := range d.LowStock {
		fmt.Fprintf(c.out, "low stock: %s (%s) %d left\n", p.Name, p.ID, p.Stock)
	}
	return nil
}
