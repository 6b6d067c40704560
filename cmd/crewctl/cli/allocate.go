package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/text/language"

	"github.com/crewstay/crewstay/internal/billing"
	"github.com/crewstay/crewstay/internal/billing/export"
)

// Exit codes shared by commands.
const (
	ExitOK      = 0
	ExitFailure = 1
	// ExitIncomplete signals a result with skipped records or unresolved prices.
	ExitIncomplete = 10
)

// AllocateOptions defines flags for the allocate command.
type AllocateOptions struct {
	// Input is a JSON file with records and an optional range; "-" reads stdin.
	Input    string
	Output   string
	Timezone string
	Locale   string
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
}

// AllocateCommand runs the allocator over a JSON input file and prints rows as a
// table, JSON or CSV.
func AllocateCommand(ctx context.Context, opts AllocateOptions) int {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	fail := func(format string, args ...any) int {
		_, _ = fmt.Fprintf(opts.Stderr, "allocate: "+format+"\n", args...)
		return ExitFailure
	}
	if err := ctx.Err(); err != nil {
		return fail("%v", err)
	}

	loc := time.UTC
	if tz := strings.TrimSpace(opts.Timezone); tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return fail("invalid timezone %q", opts.Timezone)
		}
	}
	tag := language.Russian
	if l := strings.TrimSpace(opts.Locale); l != "" {
		var err error
		if tag, err = language.Parse(l); err != nil {
			return fail("invalid locale %q", opts.Locale)
		}
	}

	input, err := readInput(opts)
	if err != nil {
		return fail("%v", err)
	}
	alloc, err := billing.BuildAllocationFromInput(input, billing.NewParser(loc))
	if err != nil {
		return fail("%v", err)
	}
	billing.SortRows(alloc.Rows, billing.NewCollator(tag))

	switch strings.ToLower(strings.TrimSpace(opts.Output)) {
	case "", "table":
		renderTable(opts.Stdout, alloc, billing.NewFormatter(tag, loc))
	case "json":
		if err := json.NewEncoder(opts.Stdout).Encode(alloc); err != nil {
			return fail("encode json: %v", err)
		}
	case "csv":
		doc := export.Document{Allocation: alloc, Formatter: billing.NewFormatter(tag, loc)}
		if err := export.WriteCSV(opts.Stdout, doc); err != nil {
			return fail("write csv: %v", err)
		}
	default:
		return fail("unsupported output %q (expected table, json or csv)", opts.Output)
	}

	for _, skipped := range alloc.Skipped {
		_, _ = fmt.Fprintf(opts.Stderr, "skipped record %d (%s): %s\n", skipped.Index, skipped.Person, skipped.Reason)
	}
	if len(alloc.Skipped) > 0 || alloc.UnresolvedCount() > 0 {
		return ExitIncomplete
	}
	return ExitOK
}

func readInput(opts AllocateOptions) (billing.AllocationInput, error) {
	var r io.Reader
	switch strings.TrimSpace(opts.Input) {
	case "":
		return billing.AllocationInput{}, fmt.Errorf("--input is required")
	case "-":
		r = opts.Stdin
	default:
		f, err := os.Open(opts.Input)
		if err != nil {
			return billing.AllocationInput{}, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	var input billing.AllocationInput
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return billing.AllocationInput{}, fmt.Errorf("decode input: %w", err)
	}
	return input, nil
}

func renderTable(out io.Writer, alloc billing.Allocation, f billing.Formatter) {
	_, _ = fmt.Fprintf(out, "Period %s - %s\n", f.Date(alloc.Window.Start), f.Date(alloc.Window.End))
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tRoom\tGuest\tFrom\tTo\tDays\tLiving\tMeals\tTotal\tNote")
	for _, row := range alloc.Rows {
		note := row.ShareNote
		if row.PriceUnresolved {
			note = joinNote(note, "price unresolved")
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			row.Index, row.RoomName, row.PersonName, row.StayStart, row.StayEnd, row.TotalDays,
			f.Money(row.TotalLivingCost), f.Money(row.TotalMealCost), f.Money(row.TotalDebt), note)
	}
	living, meals, debt := alloc.Totals()
	_, _ = fmt.Fprintf(tw, "\t\tTotal\t\t\t\t%s\t%s\t%s\t\n", f.Money(living), f.Money(meals), f.Money(debt))
	_ = tw.Flush()
}

func joinNote(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "; ")
}
