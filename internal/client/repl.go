package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/Clark-Hu/movies-db/internal/domain"
	"github.com/Clark-Hu/movies-db/internal/wire"
)

const helpText = `clear                               remove every record
execute_script <file>               run commands from a file, in the same form as typed here
exit                                quit the client
filter_contains_name <text>         show records whose name contains text (ignoring case)
help                                show this help
info                                show collection information
insert <name>                       add a new record with the given name
max_by_name                         show the record with the greatest name
print_field_ascending_genre <genre> show records of a genre in ascending order
remove <name>                       remove the record with the given name
remove_lower                        remove every record lower than the one entered
remove_lower_key <name>             remove every record whose name sorts before name
replace_if_greater <name>           replace the named record if the entered one is not lower
show                                show every record
update <id>                         replace the record with the given id
`

// Processor reads user commands line by line and turns them into wire
// commands. Scripts may call other scripts; a script already on the stack is
// refused.
type Processor struct {
	stdin   *lineSource
	out     io.Writer
	loc     *time.Location
	scripts []string
	exec    Executor
}

// NewProcessor reads commands from in and writes output to out. Prompts are
// printed only when interactive is set.
func NewProcessor(in io.Reader, out io.Writer, interactive bool) *Processor {
	return &Processor{
		stdin: newLineSource(in, interactive),
		out:   out,
		loc:   time.Local,
	}
}

// Run processes stdin until EOF or exit. A non-nil error means the
// connection failed; input state is kept so Run can resume on a new
// Executor.
func (p *Processor) Run(ctx context.Context, exec Executor) error {
	p.exec = exec
	for {
		if p.stdin.interactive {
			fmt.Fprint(p.out, "> ")
		}
		line, err := p.stdin.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		exit, err := p.process(ctx, line, p.stdin)
		if err != nil {
			return err
		}
		if exit {
			return nil
		}
	}
}

// Confirm asks a yes/no question on stdin. An empty answer means yes and
// end of input means no.
func (p *Processor) Confirm(question string) bool {
	fmt.Fprintf(p.out, "%s [Y/n] ", question)
	line, err := p.stdin.ReadLine()
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return true
	}
	return false
}

// process runs one command line. Record fields are read from src. Only
// transport failures are returned as errors.
func (p *Processor) process(ctx context.Context, line string, src *lineSource) (bool, error) {
	args, err := shellwords.Parse(line)
	if err != nil {
		fmt.Fprintf(p.out, "error: %v\n", err)
		return false, nil
	}
	if len(args) == 0 {
		return false, nil
	}
	name := strings.ToLower(args[0])
	rest := strings.TrimSpace(strings.Join(args[1:], " "))
	fields := &fieldReader{src: src, out: p.out, loc: p.loc}

	switch name {
	case "exit":
		return true, nil
	case "help":
		fmt.Fprint(p.out, helpText)
		return false, nil
	case "execute_script":
		return p.executeScript(ctx, rest)
	}

	err = p.run(ctx, name, rest, fields)
	if errors.Is(err, errIncompleteInput) {
		fmt.Fprintf(p.out, "error: %v\n", err)
		return false, nil
	}
	return false, err
}

func (p *Processor) run(ctx context.Context, name, arg string, fields *fieldReader) error {
	switch name {
	case "show":
		return p.list(ctx, wire.NewCommand(wire.KindShow))

	case "info":
		res, err := p.exec.Exec(ctx, wire.NewCommand(wire.KindInfo))
		if err != nil {
			return err
		}
		if res.Status != wire.StatusSuccess || res.Info == nil {
			p.report(res, "")
			return nil
		}
		fmt.Fprintf(p.out, "Backend        : %s\n", res.Info.Backend)
		fmt.Fprintf(p.out, "Init date      : %s\n", res.Info.InitTime.Local().Format(time.RFC3339))
		fmt.Fprintf(p.out, "Elements count : %d\n", res.Info.Size)
		fmt.Fprintf(p.out, "Maximum id     : %d\n", res.Info.MaxID)
		return nil

	case "clear":
		return p.simple(ctx, wire.NewCommand(wire.KindClear), "collection cleared")

	case "insert":
		if arg == "" {
			fmt.Fprintln(p.out, "error: insert needs a name")
			return nil
		}
		found, err := p.exec.Exec(ctx, wire.NewCommand(wire.KindFindByName).WithKey(arg))
		if err != nil {
			return err
		}
		if found.Status == wire.StatusSuccess {
			fmt.Fprintf(p.out, "movie %q already exists\n", arg)
			return nil
		}
		m, err := fields.readMovie(arg)
		if err != nil {
			return err
		}
		return p.simple(ctx, wire.NewCommand(wire.KindInsert).WithMovie(m), fmt.Sprintf("movie %q appended", arg))

	case "update":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			fmt.Fprintf(p.out, "error: update needs a numeric id, got %q\n", arg)
			return nil
		}
		found, err := p.exec.Exec(ctx, wire.NewCommand(wire.KindFindByID).WithID(id))
		if err != nil {
			return err
		}
		if found.Status != wire.StatusSuccess {
			fmt.Fprintf(p.out, "no record with id %d\n", id)
			return nil
		}
		m, err := fields.readMovie("")
		if err != nil {
			return err
		}
		return p.simple(ctx, wire.NewCommand(wire.KindUpdate).WithID(id).WithMovie(m), fmt.Sprintf("record %d updated", id))

	case "remove", "remove_key":
		if arg == "" {
			fmt.Fprintln(p.out, "error: remove needs a name")
			return nil
		}
		return p.simple(ctx, wire.NewCommand(wire.KindRemove).WithKey(arg), fmt.Sprintf("record %q removed", arg))

	case "max_by_name":
		res, err := p.exec.Exec(ctx, wire.NewCommand(wire.KindMaxByName))
		if err != nil {
			return err
		}
		if res.Status == wire.StatusSuccess && res.Movie != nil {
			fmt.Fprintln(p.out, FormatMovie(*res.Movie))
			return nil
		}
		p.report(res, "")
		return nil

	case "remove_lower_key":
		if arg == "" {
			fmt.Fprintln(p.out, "error: remove_lower_key needs a name")
			return nil
		}
		return p.simple(ctx, wire.NewCommand(wire.KindRemoveLowerKey).WithKey(arg), "")

	case "filter_contains_name":
		if arg == "" {
			fmt.Fprintln(p.out, "error: filter_contains_name needs a substring")
			return nil
		}
		return p.list(ctx, wire.NewCommand(wire.KindFilterContainsName).WithKey(arg))

	case "print_field_ascending_genre":
		g, err := domain.ParseGenre(arg)
		if err != nil {
			fmt.Fprintf(p.out, "error: genre must be one of %s\n", domain.Choices(domain.Genres))
			return nil
		}
		return p.list(ctx, wire.NewCommand(wire.KindPrintFieldAscendingGenre).WithGenre(g))

	case "remove_lower":
		m, err := fields.readMovie("")
		if err != nil {
			return err
		}
		return p.simple(ctx, wire.NewCommand(wire.KindRemoveLower).WithMovie(m), "")

	case "replace_if_greater":
		if arg == "" {
			fmt.Fprintln(p.out, "error: replace_if_greater needs a name")
			return nil
		}
		m, err := fields.readMovie("")
		if err != nil {
			return err
		}
		return p.simple(ctx, wire.NewCommand(wire.KindReplaceIfGreater).WithKey(arg).WithMovie(m), "record replaced")

	default:
		fmt.Fprintf(p.out, "invalid command: %s (try help)\n", name)
		return nil
	}
}

func (p *Processor) executeScript(ctx context.Context, file string) (bool, error) {
	if file == "" {
		fmt.Fprintln(p.out, "error: execute_script needs a file name")
		return false, nil
	}
	key := file
	if abs, err := filepath.Abs(file); err == nil {
		key = abs
	}
	if slices.Contains(p.scripts, key) {
		fmt.Fprintf(p.out, "error: recursive call of script %s refused\n", file)
		return false, nil
	}
	f, err := os.Open(file)
	if err != nil {
		fmt.Fprintf(p.out, "error: cannot read script: %v\n", err)
		return false, nil
	}
	defer f.Close()

	p.scripts = append(p.scripts, key)
	defer func() { p.scripts = p.scripts[:len(p.scripts)-1] }()

	src := newLineSource(f, false)
	for {
		line, err := src.ReadLine()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			fmt.Fprintf(p.out, "error: reading script: %v\n", err)
			return false, nil
		}
		exit, err := p.process(ctx, line, src)
		if err != nil || exit {
			return exit, err
		}
	}
}

func (p *Processor) simple(ctx context.Context, cmd wire.Command, okText string) error {
	res, err := p.exec.Exec(ctx, cmd)
	if err != nil {
		return err
	}
	p.report(res, okText)
	return nil
}

func (p *Processor) list(ctx context.Context, cmd wire.Command) error {
	res, err := p.exec.Exec(ctx, cmd)
	if err != nil {
		return err
	}
	if res.Status != wire.StatusSuccess {
		p.report(res, "")
		return nil
	}
	if len(res.Movies) == 0 {
		fmt.Fprintln(p.out, "no records")
	}
	for _, m := range res.Movies {
		fmt.Fprintln(p.out, FormatMovie(m))
	}
	return nil
}

// report prints a result. Server messages take precedence over okText.
func (p *Processor) report(res wire.Result, okText string) {
	switch res.Status {
	case wire.StatusSuccess:
		switch {
		case res.Message != "":
			fmt.Fprintln(p.out, res.Message)
		case okText != "":
			fmt.Fprintln(p.out, okText)
		default:
			fmt.Fprintln(p.out, "ok")
		}
	case wire.StatusWarning:
		fmt.Fprintf(p.out, "warning: %s\n", res.Message)
	default:
		fmt.Fprintf(p.out, "error: %s\n", res.Message)
	}
}

// FormatMovie renders a record on one line.
func FormatMovie(m domain.Movie) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %q genre=%s rating=%s oscars=%d", m.ID, m.Name, m.Genre, m.MpaaRating, m.OscarsCount)
	if m.Coordinates != nil {
		fmt.Fprintf(&b, " coords=(%g, %d)", m.Coordinates.X, m.Coordinates.Y)
	}
	if !m.CreationDate.IsZero() {
		fmt.Fprintf(&b, " created=%s", m.CreationDate.Local().Format(time.RFC3339))
	}
	if d := m.Director; d != nil {
		fmt.Fprintf(&b, " director=%q born=%s passport=%s hair=%s", d.Name, d.Birthday.Format(BirthdayLayout), d.PassportID, d.HairColor)
		if d.Location != nil {
			fmt.Fprintf(&b, " location=%q(%d, %d)", d.Location.Name, d.Location.X, d.Location.Y)
		}
	}
	return b.String()
}
