// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/partnerform/internal/export"
	"github.com/pdiddy/partnerform/internal/wizard"
	"github.com/pdiddy/partnerform/pkg/types"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Fill the form step by step with a line-driven wizard",
	Long: `Session reads commands from stdin, one per line, and walks the wizard
ChooseMethod -> ProvideInput -> ExtractAndReview -> EditForm -> Export.
Type "help" for the command list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		return newREPL(a, cmd.OutOrStdout()).run(ctx, cmd.InOrStdin())
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
}

const sessionHelp = `commands:
  method website|documents|manual   choose the input method
  url <address>                     read a company website
  doc <path> [path...]              read documents
  set <key>=<value>                 manual value (always wins over extraction)
  next | back                       move through the wizard
  extract                           run extraction on everything gathered
  edit <key>=<value>                change a form value
  show [text|yaml|json]             print the form
  state                             print the wizard position
  history                           list extraction attempts of this session
  export [path]                     write the finished form (stdout when no path)
  reset                             start over
  quit`

var errQuit = errors.New("quit")

type repl struct {
	a   *app
	s   *wizard.Session
	out io.Writer
}

func newREPL(a *app, out io.Writer) *repl {
	return &repl{a: a, s: a.newSession(), out: out}
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(r.out, "partnerform session %s (type \"help\" for commands)\n", r.s.ID())
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprintf(r.out, "[%s]> ", r.s.Step())
		if !sc.Scan() {
			fmt.Fprintln(r.out)
			return sc.Err()
		}
		err := r.exec(ctx, sc.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

func (r *repl) exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	cmd, rest = strings.ToLower(cmd), strings.TrimSpace(rest)

	switch cmd {
	case "help", "?":
		fmt.Fprintln(r.out, sessionHelp)
	case "quit", "exit":
		return errQuit
	case "method":
		if err := r.s.ChooseMethod(types.InputMethod(strings.ToLower(rest))); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "method: %s\n", rest)
	case "url":
		if rest == "" {
			return fmt.Errorf("usage: url <address>")
		}
		page, reused, err := r.a.loadWebsite(ctx, r.s, rest)
		if err != nil {
			return err
		}
		if reused {
			fmt.Fprintf(r.out, "already read %s (%d bytes of text); reset to read it again\n", page.URL, len(page.Text))
			return nil
		}
		fmt.Fprintf(r.out, "read %s (%d bytes of text)\n", page.URL, len(page.Text))
	case "doc", "docs":
		paths := strings.Fields(rest)
		if len(paths) == 0 {
			return fmt.Errorf("usage: doc <path> [path...]")
		}
		n, reused, err := r.a.loadDocuments(ctx, r.s, paths)
		if err != nil {
			return err
		}
		if reused {
			fmt.Fprintf(r.out, "already read these document(s) (%d bytes of text); reset to read them again\n", n)
			return nil
		}
		fmt.Fprintf(r.out, "read %d document(s) (%d bytes of text)\n", len(paths), n)
	case "set", "edit":
		kv, err := parseAssignments([]string{rest})
		if err != nil {
			return err
		}
		for k, v := range kv {
			if cmd == "set" {
				err = r.s.SetManual(k, v)
			} else {
				err = r.s.EditField(k, v)
			}
			if err != nil {
				return err
			}
		}
	case "next":
		if err := r.s.Next(); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "now at %s\n", r.s.Step())
	case "back":
		r.s.Back()
		fmt.Fprintf(r.out, "now at %s\n", r.s.Step())
	case "extract":
		out, err := r.s.Extract(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, out.Message)
	case "show":
		return r.show(rest)
	case "state":
		st := r.s.State()
		fmt.Fprintf(r.out, "step=%s method=%s website_parsed=%t documents_parsed=%t extracted=%t\n",
			st.Step, st.Method, st.WebsiteParsed, st.DocumentsParsed, st.Extracted)
	case "history":
		return r.history(ctx)
	case "export":
		return r.export(rest)
	case "reset":
		r.s.Reset()
		fmt.Fprintln(r.out, "session reset")
	default:
		return fmt.Errorf("unknown command %q (type \"help\")", cmd)
	}
	return nil
}

func (r *repl) show(formatName string) error {
	rec := r.s.Record()
	if rec == nil {
		fmt.Fprintln(r.out, "the form is empty until extraction runs or manual entry starts")
		return nil
	}
	format := export.FormatText
	if formatName != "" {
		f, err := export.ParseFormat(formatName)
		if err != nil {
			return err
		}
		format = f
	}
	return export.Write(r.out, r.a.reg, rec, format)
}

func (r *repl) history(ctx context.Context) error {
	attempts, err := r.a.calls.List(ctx, r.s.ID())
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		fmt.Fprintln(r.out, "no extraction attempts yet")
		return nil
	}
	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPROVIDER\tOUTCOME\tPHASE\tBYTES\tDURATION")
	for i, at := range attempts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", i+1, at.Provider, at.Outcome, at.ParsePhase, at.RawBytes, at.Duration)
	}
	return tw.Flush()
}

func (r *repl) export(path string) error {
	if r.s.Step() != wizard.StepExport {
		return fmt.Errorf("%w: export at %s", wizard.ErrWrongStep, r.s.Step())
	}
	rec, err := r.s.Final()
	if err != nil {
		return err
	}
	if path == "" {
		return export.WriteYAML(r.out, r.a.reg, rec)
	}
	if err := export.WriteFile(path, r.a.reg, rec); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "wrote %s\n", path)
	return nil
}
