package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"livrocaixa/internal/amqp"
	"livrocaixa/internal/auth"
	"livrocaixa/internal/cli"
	"livrocaixa/internal/config"
	"livrocaixa/internal/core"
	"livrocaixa/internal/csvimport"
	applog "livrocaixa/internal/log"
	"livrocaixa/internal/services"
	"livrocaixa/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	switch os.Args[1] {
	case "preview":
		runImport(logger, "preview", false)
	case "commit":
		runImport(logger, "commit", true)
	case "token":
		runToken(logger)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Livro-caixa CSV import")
	fmt.Println("\nUsage:")
	fmt.Println("  csv-import <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  preview   Parse a bank statement and show what would be imported")
	fmt.Println("  commit    Parse a bank statement and write the valid rows")
	fmt.Println("  token     Issue a bearer token for the API")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'csv-import <command> -h' for more information on a command.")
}

type importFlags struct {
	file            string
	account         string
	incomeCategory  string
	expenseCategory string
	status          string
	skip            string
	user            string
}

func runImport(logger *applog.Logger, name string, commit bool) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var f importFlags
	fs.StringVar(&f.file, "file", "", "Path to the CSV statement")
	fs.StringVar(&f.account, "account", "", "Target account (id or name)")
	fs.StringVar(&f.incomeCategory, "income-category", "", "Category for income rows (id or name)")
	fs.StringVar(&f.expenseCategory, "expense-category", "", "Category for expense rows (id or name)")
	fs.StringVar(&f.status, "status", string(core.Executed), "Status of expense rows: executed or scheduled")
	fs.StringVar(&f.skip, "skip", "", "Comma separated line numbers to leave out")
	fs.StringVar(&f.user, "user", "csv-import", "User recorded as creator")
	_ = fs.Parse(os.Args[2:])

	if f.file == "" {
		logger.Error("Error: -file is required")
		os.Exit(1)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	backend := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := backend.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}()

	defaults, err := resolveDefaults(ctx, backend.Store, f)
	if err != nil {
		logger.Error("Invalid import target", "error", err)
		os.Exit(1)
	}

	raw, err := os.ReadFile(f.file)
	if err != nil {
		logger.Error("Failed to read file", "error", err, "file", f.file)
		os.Exit(1)
	}
	text, err := csvimport.DecodeText(raw)
	if err != nil {
		logger.Error("Failed to decode file", "error", err, "file", f.file)
		os.Exit(1)
	}

	var publisher services.Publisher
	if commit && cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, the import will not be announced", "error", err)
		} else {
			defer c.Close()
			publisher = c
		}
	}
	imports := services.NewImportService(backend.Store, cfg.ImportBatchSize, publisher, nil, logger)

	preview, err := imports.Preview(text, defaults)
	if err != nil {
		logger.Error("Failed to parse file", "error", err)
		os.Exit(1)
	}
	if err := skipLines(preview.Rows, f.skip); err != nil {
		logger.Error("Invalid -skip", "error", err)
		os.Exit(1)
	}

	printRows(preview.Rows)
	stats := csvimport.Summarize(preview.Rows)
	fmt.Printf("\n%d linhas, %d válidas, %d inválidas, %d selecionadas\n", stats.Total, stats.Valid, stats.Invalid, stats.Included)
	fmt.Printf("Entradas: %s  Saídas: %s\n", core.FormatCurrencyLocalized(stats.Income), core.FormatCurrencyLocalized(stats.Expense))

	if !commit {
		return
	}

	ctx = auth.WithUser(ctx, auth.User{ID: f.user, Role: auth.RoleAdmin})
	res, err := imports.Commit(ctx, preview.Rows)
	if len(res.IDs) > 0 {
		fmt.Printf("\n%d lançamentos gravados em %d lotes\n", len(res.IDs), res.Batches)
	}
	if err != nil {
		logger.Error("Import failed", "error", err, "committed", len(res.IDs))
		os.Exit(1)
	}
}

func resolveDefaults(ctx context.Context, s store.Store, f importFlags) (csvimport.Defaults, error) {
	d := csvimport.Defaults{ExpenseStatus: core.NormalizeStatus(f.status)}
	if f.account != "" {
		accounts, err := s.ListAccounts(ctx, true)
		if err != nil {
			return d, err
		}
		id, ok := lookup(f.account, len(accounts), func(i int) (string, string) { return accounts[i].ID, accounts[i].Name })
		if !ok {
			return d, fmt.Errorf("conta não encontrada: %s", f.account)
		}
		d.AccountID = id
	}
	if f.incomeCategory == "" && f.expenseCategory == "" {
		return d, nil
	}
	categories, err := s.ListCategories(ctx, true)
	if err != nil {
		return d, err
	}
	for _, target := range []struct {
		ref  string
		kind core.Kind
		dst  *string
	}{
		{f.incomeCategory, core.Income, &d.IncomeCategoryID},
		{f.expenseCategory, core.Expense, &d.ExpenseCategoryID},
	} {
		if target.ref == "" {
			continue
		}
		var ofKind []core.Category
		for _, c := range categories {
			if c.Kind == target.kind {
				ofKind = append(ofKind, c)
			}
		}
		id, ok := lookup(target.ref, len(ofKind), func(i int) (string, string) { return ofKind[i].ID, ofKind[i].Name })
		if !ok {
			return d, fmt.Errorf("categoria de %s não encontrada: %s", target.kind.Label(), target.ref)
		}
		*target.dst = id
	}
	return d, nil
}

// lookup matches ref against ids first, then against accent-insensitive names.
func lookup(ref string, n int, at func(int) (id, name string)) (string, bool) {
	want := csvimport.Normalize(ref)
	for i := 0; i < n; i++ {
		if id, _ := at(i); id == ref {
			return id, true
		}
	}
	for i := 0; i < n; i++ {
		if id, name := at(i); csvimport.Normalize(name) == want {
			return id, true
		}
	}
	return "", false
}

func skipLines(rows []csvimport.ParsedRow, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	no := false
	for _, part := range strings.Split(raw, ",") {
		var line int
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &line); err != nil {
			return fmt.Errorf("linha inválida %q", part)
		}
		found := false
		for i := range rows {
			if rows[i].Line == line {
				if err := (csvimport.RowEdit{Include: &no}).Apply(&rows[i]); err != nil {
					return err
				}
				found = true
			}
		}
		if !found {
			return fmt.Errorf("linha %d não existe no arquivo", line)
		}
	}
	return nil
}

func printRows(rows []csvimport.ParsedRow) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LINHA\tDATA\tTIPO\tVALOR\tDESCRIÇÃO\tSITUAÇÃO")
	for _, r := range rows {
		if !r.OK {
			reason := ""
			if r.Err != nil {
				reason = r.Err.Reason
			}
			fmt.Fprintf(w, "%d\t\t\t\t%s\tinválida: %s\n", r.Line, r.Raw, reason)
			continue
		}
		state := "incluída"
		if !r.Include {
			state = "ignorada"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.Line, r.Date.Localized(), r.Kind.Label(), core.FormatCurrencyLocalized(r.Amount), r.Description, state)
	}
	_ = w.Flush()
}

func runToken(logger *applog.Logger) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	user := fs.String("user", "", "User id placed in the token subject")
	role := fs.String("role", "", "Role claim; use 'admin' for privileged access")
	ttl := fs.Duration("ttl", 12*time.Hour, "Token lifetime")
	_ = fs.Parse(os.Args[2:])

	if *user == "" {
		logger.Error("Error: -user is required")
		os.Exit(1)
	}
	cfg := config.Load()
	iss, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		logger.Error("Failed to initialize token issuer", "error", err)
		os.Exit(1)
	}
	token, err := iss.Issue(*user, *role, *ttl)
	if err != nil {
		logger.Error("Failed to issue token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
