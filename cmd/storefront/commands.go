package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/teamcoffee/storefront/internal/app"
	"github.com/teamcoffee/storefront/internal/catalog"
	"github.com/teamcoffee/storefront/internal/domain"
	"github.com/teamcoffee/storefront/internal/order"
	"github.com/teamcoffee/storefront/internal/session"
	"github.com/teamcoffee/storefront/internal/wishlist"
	apperrors "github.com/teamcoffee/storefront/pkg/errors"
	"github.com/teamcoffee/storefront/pkg/health"
	"github.com/teamcoffee/storefront/pkg/validator"
)

type command struct {
	usage string
	run   func(ctx context.Context, a *app.App, args []string, out *printer) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"login":          {"login -email E [-password P]", cmdLogin},
		"logout":         {"logout", cmdLogout},
		"register":       {"register -name N -email E -password P -address A", cmdRegister},
		"whoami":         {"whoami", cmdWhoami},
		"delete-account": {"delete-account -yes", cmdDeleteAccount},
		"products":       {"products [-search S] [-min N] [-max N] [-in-stock] [-sort name|price_asc|price_desc|popular|newest] [-page N] [-per-page N]", cmdProducts},
		"product":        {"product ID", cmdProduct},
		"wishlist":       {"wishlist", cmdWishlist},
		"wish":           {"wish add PRODUCT_ID [QTY] | rm WISH_ID | set WISH_ID QTY | inc WISH_ID | dec WISH_ID", cmdWish},
		"buy":            {"buy PRODUCT_ID [QTY]", cmdBuy},
		"checkout":       {"checkout", cmdCheckout},
		"orders":         {"orders", cmdOrders},
		"order":          {"order ID | cancel ID", cmdOrder},
		"admin":          {"admin today | status ORDER_ID STATUS | product-add -name N -price P [-stock S] | product-set ID -name N -price P [-stock S] | product-rm ID", cmdAdmin},
		"status":         {"status", cmdStatus},
		"metrics":        {"metrics", cmdMetrics},
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: storefront <command> [arguments]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

// --- account ---

func cmdLogin(ctx context.Context, a *app.App, args []string, out *printer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("STOREFRONT_PASSWORD"), "password (or STOREFRONT_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}
	s, err := a.Session.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	out.linef("Signed in as %s (%s)", s.DisplayName, s.UserEmail)
	return nil
}

func cmdLogout(ctx context.Context, a *app.App, _ []string, out *printer) error {
	a.Session.Logout(ctx)
	out.linef("Signed out")
	return nil
}

func cmdRegister(ctx context.Context, a *app.App, args []string, out *printer) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var req domain.RegisterRequest
	fs.StringVar(&req.Username, "name", "", "display name")
	fs.StringVar(&req.Email, "email", "", "account email")
	fs.StringVar(&req.Password, "password", "", "password, at least 4 characters")
	fs.StringVar(&req.ConfirmPassword, "confirm", "", "password confirmation (defaults to -password)")
	fs.StringVar(&req.Address, "address", "", "delivery address")
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}
	if req.ConfirmPassword == "" {
		req.ConfirmPassword = req.Password
	}
	u, err := a.Session.Register(ctx, req)
	if err != nil {
		return err
	}
	out.linef("Registered %s. Run `storefront login -email %s` to sign in.", u.Email, u.Email)
	return nil
}

func cmdWhoami(_ context.Context, a *app.App, _ []string, out *printer) error {
	s := a.Session.Current()
	if !s.IsAuthenticated() {
		out.linef("Not signed in")
		return nil
	}
	out.linef("%s <%s> role=%s", s.DisplayName, s.UserEmail, s.Role)
	return nil
}

func cmdDeleteAccount(ctx context.Context, a *app.App, args []string, out *printer) error {
	fs := flag.NewFlagSet("delete-account", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "confirm deletion")
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}
	if !*yes {
		return apperrors.InvalidInput("pass -yes to delete the account")
	}
	if err := a.Session.DeleteAccount(ctx); err != nil {
		return err
	}
	out.linef("Account deleted")
	return nil
}

// --- catalog ---

func cmdProducts(ctx context.Context, a *app.App, args []string, out *printer) error {
	fs := flag.NewFlagSet("products", flag.ContinueOnError)
	var q catalog.Query
	fs.StringVar(&q.Search, "search", "", "match name or description")
	minPrice := fs.Int64("min", -1, "minimum price")
	maxPrice := fs.Int64("max", -1, "maximum price")
	fs.BoolVar(&q.InStockOnly, "in-stock", false, "only products in stock")
	fs.StringVar(&q.Sort, "sort", "", "sort order")
	fs.IntVar(&q.Page, "page", 1, "page number")
	fs.IntVar(&q.PerPage, "per-page", 20, "products per page")
	if err := fs.Parse(args); err != nil {
		return usageError(err)
	}
	if *minPrice >= 0 {
		q.MinPrice = minPrice
	}
	if *maxPrice >= 0 {
		q.MaxPrice = maxPrice
	}

	page, err := a.Catalog.Search(ctx, q)
	if err != nil {
		return err
	}
	tw := out.table("ID", "NAME", "PRICE", "STOCK", "ORDERS")
	for _, p := range page.Data {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n", p.ProductID, p.ProductName, won(p.Price), p.Stock, p.OrderCount)
	}
	tw.Flush()
	out.linef("page %d/%d, %d products", page.Page, max(page.TotalPages, 1), page.TotalCount)
	return nil
}

func cmdProduct(ctx context.Context, a *app.App, args []string, out *printer) error {
	id, err := argID(args, 0, "product id")
	if err != nil {
		return err
	}
	p, err := a.Catalog.Get(ctx, id)
	if err != nil {
		return err
	}
	out.linef("%s  %s", p.ProductName, won(p.Price))
	if p.Description != "" {
		out.linef("%s", p.Description)
	}
	out.linef("stock %d, ordered %d times", p.Stock, p.OrderCount)
	if a.Session.IsAuthenticated() {
		if err := a.Wishlist.Fetch(ctx); err == nil && a.Wishlist.IsInWishlist(p.ProductID) {
			out.linef("♥ in your wishlist")
		}
	}
	return nil
}

// --- wishlist ---

func cmdWishlist(ctx context.Context, a *app.App, _ []string, out *printer) error {
	if !a.Session.IsAuthenticated() {
		return wishlist.ErrLoginRequired
	}
	if err := a.Wishlist.Fetch(ctx); err != nil {
		return err
	}
	items := a.Wishlist.Items()
	if len(items) == 0 {
		out.linef("Your wishlist is empty")
		return nil
	}
	tw := out.table("WISH", "PRODUCT", "NAME", "QTY", "LINE")
	for _, e := range items {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\n", e.WishID, e.ProductID, e.ProductName, e.Quantity, won(e.LineTotal()))
	}
	tw.Flush()
	printQuote(out, order.QuoteFor(items))
	return nil
}

func cmdWish(ctx context.Context, a *app.App, args []string, out *printer) error {
	if len(args) == 0 {
		return usageError(errors.New("wish needs a subcommand"))
	}
	sub, rest := args[0], args[1:]

	// Mutations by wish id act on the local list.
	if sub != "add" {
		if err := a.Wishlist.Fetch(ctx); err != nil {
			return err
		}
	}

	var entry domain.WishlistEntry
	switch sub {
	case "add":
		id, err := argID(rest, 0, "product id")
		if err != nil {
			return err
		}
		qty, err := argInt(rest, 1, 1)
		if err != nil {
			return err
		}
		entry, err = a.Wishlist.Add(ctx, id, qty)
		if err != nil {
			return err
		}
	case "rm":
		id, err := argID(rest, 0, "wish id")
		if err != nil {
			return err
		}
		if err := a.Wishlist.Remove(ctx, id); err != nil {
			return err
		}
		out.linef("Removed wish %d", id)
		return nil
	case "set":
		id, err := argID(rest, 0, "wish id")
		if err != nil {
			return err
		}
		qty, err := argInt(rest, 1, 0)
		if err != nil {
			return err
		}
		entry, err = a.Wishlist.UpdateQuantity(ctx, id, qty)
		if err != nil {
			return err
		}
	case "inc", "dec":
		id, err := argID(rest, 0, "wish id")
		if err != nil {
			return err
		}
		if sub == "inc" {
			entry, err = a.Wishlist.Increment(ctx, id)
		} else {
			entry, err = a.Wishlist.Decrement(ctx, id)
		}
		if err != nil {
			return err
		}
	default:
		return usageError(fmt.Errorf("unknown wish subcommand %q", sub))
	}
	out.linef("%s x%d (wish %d)", nonEmpty(entry.ProductName, "product "+strconv.FormatInt(entry.ProductID, 10)), entry.Quantity, entry.WishID)
	return nil
}

// --- orders ---

func cmdBuy(ctx context.Context, a *app.App, args []string, out *printer) error {
	id, err := argID(args, 0, "product id")
	if err != nil {
		return err
	}
	qty, err := argInt(args, 1, 1)
	if err != nil {
		return err
	}
	orders, err := a.Orders.SubmitSingle(ctx, id, qty)
	if err != nil {
		return err
	}
	printOrders(out, orders)
	return nil
}

func cmdCheckout(ctx context.Context, a *app.App, _ []string, out *printer) error {
	orders, err := a.Orders.SubmitWishlist(ctx)
	if len(orders) > 0 {
		printOrders(out, orders)
	}
	return err
}

func cmdOrders(ctx context.Context, a *app.App, _ []string, out *printer) error {
	orders, err := a.Orders.History(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		out.linef("No orders yet")
		return nil
	}
	printOrders(out, orders)
	return nil
}

func cmdOrder(ctx context.Context, a *app.App, args []string, out *printer) error {
	if len(args) > 0 && args[0] == "cancel" {
		id, err := argID(args, 1, "order id")
		if err != nil {
			return err
		}
		if err := a.Orders.Cancel(ctx, id); err != nil {
			return err
		}
		out.linef("Order %d canceled", id)
		return nil
	}
	id, err := argID(args, 0, "order id")
	if err != nil {
		return err
	}
	o, err := a.Orders.Detail(ctx, id)
	if err != nil {
		return err
	}
	out.linef("Order %d  %s  %s", o.OrderID, o.OrderStatus, o.CreateDate)
	out.linef("%s x%d  %s", o.ProductName, o.OrderCount, won(o.TotalPrice))
	out.linef("deliver to %s", o.Address)
	return nil
}

// --- admin ---

func cmdAdmin(ctx context.Context, a *app.App, args []string, out *printer) error {
	if len(args) == 0 {
		return usageError(errors.New("admin needs a subcommand"))
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "today":
		orders, err := a.Orders.Today(ctx)
		if err != nil {
			return err
		}
		printOrders(out, orders)
		return nil
	case "status":
		id, err := argID(rest, 0, "order id")
		if err != nil {
			return err
		}
		if len(rest) < 2 {
			return usageError(errors.New("missing status"))
		}
		status := strings.ToUpper(rest[1])
		if err := a.Orders.UpdateStatus(ctx, id, status); err != nil {
			return err
		}
		out.linef("Order %d is now %s", id, status)
		return nil
	case "product-add":
		p, err := productFlags("product-add", rest)
		if err != nil {
			return err
		}
		created, err := a.Catalog.Create(ctx, p)
		if err != nil {
			return err
		}
		out.linef("Created product %d", created.ProductID)
		return nil
	case "product-set":
		id, err := argID(rest, 0, "product id")
		if err != nil {
			return err
		}
		p, err := productFlags("product-set", rest[1:])
		if err != nil {
			return err
		}
		if _, err := a.Catalog.Update(ctx, id, p); err != nil {
			return err
		}
		out.linef("Updated product %d", id)
		return nil
	case "product-rm":
		id, err := argID(rest, 0, "product id")
		if err != nil {
			return err
		}
		if err := a.Catalog.Delete(ctx, id); err != nil {
			return err
		}
		out.linef("Deleted product %d", id)
		return nil
	default:
		return usageError(fmt.Errorf("unknown admin subcommand %q", sub))
	}
}

func productFlags(name string, args []string) (domain.Product, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var p domain.Product
	fs.StringVar(&p.ProductName, "name", "", "product name")
	fs.Int64Var(&p.Price, "price", 0, "price in KRW")
	fs.IntVar(&p.Stock, "stock", 0, "units in stock")
	fs.StringVar(&p.Description, "description", "", "description")
	fs.StringVar(&p.ProductImage, "image", "", "image URL")
	if err := fs.Parse(args); err != nil {
		return domain.Product{}, usageError(err)
	}
	return p, nil
}

// --- diagnostics ---

func cmdStatus(ctx context.Context, a *app.App, _ []string, out *printer) error {
	report := a.Health(ctx)
	tw := out.table("CHECK", "STATUS", "LATENCY", "ERROR")
	for _, name := range report.Names() {
		c := report.Checks[name]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, c.Status, c.Latency.Round(time.Millisecond), c.Error)
	}
	tw.Flush()
	s := a.Session.Current()
	if s.IsAuthenticated() {
		out.linef("signed in as %s", s.UserEmail)
	} else {
		out.linef("signed out")
	}
	if report.Status == health.StatusDown {
		return apperrors.ServerError(503, "one or more dependencies are down")
	}
	return nil
}

func cmdMetrics(_ context.Context, a *app.App, _ []string, out *printer) error {
	families, err := a.Metrics()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "storefront_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+strconv.Quote(l.GetValue()))
			}
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			}
			out.linef("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), value)
		}
	}
	return nil
}

// --- output and errors ---

type printer struct {
	w io.Writer
}

func (p *printer) linef(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) table(headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	return tw
}

func printOrders(out *printer, orders []domain.Order) {
	tw := out.table("ORDER", "STATUS", "ITEMS", "QTY", "TOTAL", "DATE")
	for _, o := range orders {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", o.OrderID, o.OrderStatus, o.ProductName, o.OrderCount, won(o.TotalPrice), o.CreateDate)
	}
	tw.Flush()
}

func printQuote(out *printer, q order.Quote) {
	out.linef("subtotal %s  shipping %s  tax %s  total %s", won(q.Subtotal), won(q.Shipping), won(q.Tax), won(q.Total))
}

// won formats an amount with thousands separators.
func won(v int64) string {
	s := strconv.FormatInt(v, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String() + "원"
	}
	return b.String() + "원"
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

type errUsage struct{ err error }

func (e errUsage) Error() string { return e.err.Error() }
func (e errUsage) Unwrap() error { return e.err }

func usageError(err error) error { return errUsage{err} }

func argID(args []string, i int, what string) (int64, error) {
	if len(args) <= i {
		return 0, usageError(fmt.Errorf("missing %s", what))
	}
	id, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput(fmt.Sprintf("invalid %s %q", what, args[i]))
	}
	return id, nil
}

func argInt(args []string, i, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, apperrors.InvalidInput(fmt.Sprintf("invalid number %q", args[i]))
	}
	return n, nil
}

// describe renders err for a terminal user.
func describe(err error) string {
	var verr *validator.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, session.ErrInvalidCredentials):
		return "invalid email or password"
	case errors.Is(err, apperrors.ErrAuthRequired):
		return "login required: run `storefront login`"
	case errors.Is(err, wishlist.ErrQuantityFloor):
		return "quantity cannot go below 1; use `storefront wish rm` to drop the item"
	case errors.Is(err, order.ErrWishlistNotCleared):
		return "order placed, but some wishlist items could not be removed"
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func exitCode(err error) int {
	var u errUsage
	switch {
	case errors.As(err, &u):
		return 2
	case errors.Is(err, apperrors.ErrAuthRequired):
		return 3
	case apperrors.IsRetryableByUser(err):
		return 4
	default:
		return 1
	}
}
