package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/pricepulse/pricepulse-cli/internal/api"
	"github.com/pricepulse/pricepulse-cli/internal/session"
)

// requestTimeout bounds every one-shot API call made by a command.
const requestTimeout = 30 * time.Second

type app struct {
	store   *session.Store
	client  *api.Client
	binding *session.Binding
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "register":
		return a.register(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "status":
		return a.status(ctx)
	case "reset-request":
		return a.resetRequest(ctx, args)
	case "reset-password":
		return a.resetPassword(ctx, args)
	case "products":
		return a.products(ctx, args)
	case "scheduler":
		return a.scheduler(ctx, args)
	case "watch":
		return a.watch(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q (try \"pricepulse help\")", cmd)
	}
}

// ensureSession resolves the session status, performing the one-time
// best-effort refresh when no access token is stored.
func (a *app) ensureSession(ctx context.Context) {
	startCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	a.binding.Start(startCtx)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *email == "" {
		if *email, err = promptLine("Email"); err != nil {
			return err
		}
	}
	if *password == "" {
		if *password, err = promptPassword("Password"); err != nil {
			return err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	rec, err := a.client.Login(callCtx, api.Credentials{Email: *email, Password: *password})
	if err != nil {
		return err
	}

	name := *email
	if rec.User != nil {
		name = rec.User.Email
		if rec.User.Nickname != "" {
			name = rec.User.Nickname
		}
	}
	fmt.Printf("signed in as %s\n", name)
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when omitted)")
	nickname := fs.String("nickname", "", "display name (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *email == "" {
		if *email, err = promptLine("Email"); err != nil {
			return err
		}
	}
	if *password == "" {
		if *password, err = promptPassword("Password"); err != nil {
			return err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	msg, err := a.client.Register(callCtx, api.RegisterInput{
		Email:    *email,
		Password: *password,
		Nickname: *nickname,
	})
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "account created, you can sign in now"
	}
	fmt.Println(msg)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	a.ensureSession(ctx)

	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := a.client.Logout(callCtx); err != nil {
		return err
	}
	fmt.Println("signed out")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	a.ensureSession(ctx)

	if !a.binding.IsAuthenticated() {
		return fmt.Errorf("not signed in")
	}

	rec := a.store.Get()
	fmt.Printf("id:    %s\n", rec.User.ID)
	fmt.Printf("email: %s\n", rec.User.Email)
	if rec.User.Nickname != "" {
		fmt.Printf("name:  %s\n", rec.User.Nickname)
	}
	if rec.User.Role != "" {
		fmt.Printf("role:  %s\n", rec.User.Role)
	}
	if rec.ExpiresAt > 0 {
		fmt.Printf("token expires: %s\n", time.UnixMilli(rec.ExpiresAt).Format(time.RFC3339))
	}
	return nil
}

func (a *app) status(ctx context.Context) error {
	a.ensureSession(ctx)

	fmt.Printf("session: %s\n", a.binding.Status())
	if !a.binding.IsAuthenticated() {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	running, err := a.client.SchedulerStatus(callCtx)
	if err != nil {
		return err
	}
	if running {
		fmt.Println("scheduler: running")
	} else {
		fmt.Println("scheduler: stopped")
	}
	return nil
}

func (a *app) resetRequest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset-request", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *email == "" {
		if *email, err = promptLine("Email"); err != nil {
			return err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	msg, err := a.client.RequestPasswordReset(callCtx, *email)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "reset code sent, check your email"
	}
	fmt.Println(msg)
	return nil
}

func (a *app) resetPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	code := fs.String("code", "", "reset code from the email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *email == "" {
		if *email, err = promptLine("Email"); err != nil {
			return err
		}
	}
	if *code == "" {
		if *code, err = promptLine("Reset code"); err != nil {
			return err
		}
	}
	password, err := promptPassword("New password")
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	msg, err := a.client.ResetPassword(callCtx, *email, *code, password)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "password updated"
	}
	fmt.Println(msg)
	return nil
}

func (a *app) products(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	a.ensureSession(ctx)

	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch args[0] {
	case "list":
		products, err := a.client.GetProducts(callCtx)
		if err != nil {
			return err
		}
		if len(products) == 0 {
			fmt.Println("no tracked products")
			return nil
		}
		for _, p := range products {
			printProduct(p)
		}
		return nil

	case "add":
		urls := args[1:]
		if len(urls) == 0 {
			return fmt.Errorf("usage: pricepulse products add <url>...")
		}
		products, err := a.client.CreateProductsByURL(callCtx, urls)
		if err != nil {
			return err
		}
		fmt.Printf("added %d product(s)\n", len(products))
		for _, p := range products {
			printProduct(p)
		}
		return nil

	case "create":
		fs := flag.NewFlagSet("products create", flag.ContinueOnError)
		name := fs.String("name", "", "product name")
		url := fs.String("url", "", "product URL")
		price := fs.Float64("price", 0, "current price")
		target := fs.Float64("target", 0, "target price (optional)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *name == "" || *url == "" || *price <= 0 {
			return fmt.Errorf("usage: pricepulse products create -name <name> -url <url> -price <price> [-target <price>]")
		}
		p, err := a.client.CreateProduct(callCtx, api.CreateProductInput{
			Name:         *name,
			URL:          *url,
			CurrentPrice: *price,
			TargetPrice:  *target,
		})
		if err != nil {
			return err
		}
		printProduct(p)
		return nil

	default:
		return fmt.Errorf("unknown products subcommand %q", args[0])
	}
}

func (a *app) scheduler(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: pricepulse scheduler start|stop|status|check-now")
	}
	a.ensureSession(ctx)

	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch args[0] {
	case "start":
		fs := flag.NewFlagSet("scheduler start", flag.ContinueOnError)
		cron := fs.String("cron", api.DefaultCron, "cron expression for price checks")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if err := a.client.StartScheduler(callCtx, *cron); err != nil {
			return err
		}
		fmt.Println("scheduler started")
		return nil

	case "stop":
		if err := a.client.StopScheduler(callCtx); err != nil {
			return err
		}
		fmt.Println("scheduler stopped")
		return nil

	case "status":
		running, err := a.client.SchedulerStatus(callCtx)
		if err != nil {
			return err
		}
		if running {
			fmt.Println("running")
		} else {
			fmt.Println("stopped")
		}
		return nil

	case "check-now":
		if err := a.client.CheckNow(callCtx); err != nil {
			return err
		}
		fmt.Println("price check triggered")
		return nil

	default:
		return fmt.Errorf("unknown scheduler subcommand %q", args[0])
	}
}

func printProduct(p api.Product) {
	line := fmt.Sprintf("%-40.40s %8.2f %s", p.Name, p.CurrentPrice, p.Currency)
	if p.TargetPrice > 0 {
		line += fmt.Sprintf(" (target %.2f)", p.TargetPrice)
	}
	fmt.Println(line)
}
