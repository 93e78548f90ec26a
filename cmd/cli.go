package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/company-agent/internal/models"
	"github.com/xhad/company-agent/pkg/notice"
	"github.com/xhad/company-agent/pkg/session"
)

const helpText = `Commands:
  /domains              list companies
  /refresh              fetch the company list again
  /use <domain|number>  chat about another company
  /fields a,b,...       structured output fields (%s)
  /model <id>           switch model
  /temp <0..1>          set temperature
  /export [file]        write the transcript as JSON (default chat_history.json)
  /clear                clear the transcript
  /crawl a.com,b.com [-- prompt]  submit domains for crawling; a prompt makes it a custom crawl
  exit                  quit`

type cli struct {
	session *session.Session
	in      *bufio.Scanner
	out     io.Writer

	user      *color.Color
	assistant *color.Color
	info      *color.Color
	warn      *color.Color
	fail      *color.Color
}

func newCLI(s *session.Session, in io.Reader, out io.Writer) *cli {
	return &cli{
		session:   s,
		in:        bufio.NewScanner(in),
		out:       out,
		user:      color.New(color.FgGreen),
		assistant: color.New(color.FgCyan),
		info:      color.New(color.FgBlue),
		warn:      color.New(color.FgYellow),
		fail:      color.New(color.FgRed),
	}
}

func (c *cli) spinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

func (c *cli) run(ctx context.Context) error {
	defer c.session.Close(context.WithoutCancel(ctx))

	bar := c.spinner(" Loading companies...")
	domains, notices := c.session.LoadDomains(ctx, false)
	bar.Finish()
	c.notify(notices)
	c.listDomains(domains)

	c.assistant.Fprintf(c.out, "\nChat with your company knowledge (type /help for commands, 'exit' to quit)\n")

	for {
		if d, ok := c.session.Selected(); ok {
			c.user.Fprintf(c.out, "\n[%s] You: ", d.DisplayName())
		} else {
			c.user.Fprintf(c.out, "\nYou: ")
		}
		if !c.in.Scan() {
			break
		}

		line := strings.TrimSpace(c.in.Text())
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
			return nil
		case strings.HasPrefix(line, "/"):
			c.command(ctx, line)
		default:
			c.ask(ctx, line)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
	return c.in.Err()
}

func (c *cli) ask(ctx context.Context, question string) {
	bar := c.spinner(" Thinking...")
	turn, err := c.session.Ask(ctx, question)
	bar.Finish()

	if turn != nil {
		c.notify(turn.Notices)
	}
	if err != nil {
		if turn == nil {
			c.notify(notice.FromError(err))
		}
		return
	}

	c.assistant.Fprintf(c.out, "\nAssistant: %s\n", turn.Result.Answer)
	for _, f := range models.AllFields {
		if f == models.FieldQuestion || f == models.FieldAnswer {
			continue
		}
		if v, ok := turn.Result.Structured[string(f)]; ok {
			c.info.Fprintf(c.out, "  %s: %v\n", f, v)
		}
	}
}

func (c *cli) command(ctx context.Context, line string) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/help":
		fmt.Fprintf(c.out, helpText+"\n", strings.Join(models.NewFieldSet(models.AllFields...).Strings(), ", "))

	case "/domains":
		c.listDomains(c.session.Domains())

	case "/refresh":
		domains, notices := c.session.LoadDomains(ctx, true)
		c.notify(notices)
		c.listDomains(domains)

	case "/use":
		domain := arg
		if n, err := strconv.Atoi(arg); err == nil {
			domains := c.session.Domains()
			if n < 1 || n > len(domains) {
				c.fail.Fprintf(c.out, "No company number %d\n", n)
				return
			}
			domain = domains[n-1].Domain
		}
		d, err := c.session.SelectDomain(domain)
		if err != nil {
			c.notify(notice.FromError(err))
			return
		}
		c.info.Fprintf(c.out, "Now chatting about %s\n", d.DisplayName())

	case "/fields":
		fields, err := models.ParseFields(strings.Split(arg, ","))
		if err != nil {
			c.notify(notice.FromError(err))
			return
		}
		c.update(func(s *session.Settings) { s.IncludeFields = fields })

	case "/model":
		if arg == "" {
			c.info.Fprintf(c.out, "Model: %s\n", c.session.Settings().Model)
			return
		}
		c.update(func(s *session.Settings) { s.Model = arg })

	case "/temp":
		t, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			c.fail.Fprintf(c.out, "Temperature must be a number\n")
			return
		}
		c.update(func(s *session.Settings) { s.Temperature = t })

	case "/export":
		path := arg
		if path == "" {
			path = "chat_history.json"
		}
		data, err := c.session.Export()
		if err == nil {
			err = os.WriteFile(path, data, 0644)
		}
		if err != nil {
			c.fail.Fprintf(c.out, "Export failed: %v\n", err)
			return
		}
		color.New(color.FgGreen).Fprintf(c.out, "✓ Wrote %d entries to %s\n", len(c.session.Transcript()), path)

	case "/clear":
		c.session.ClearTranscript()
		c.info.Fprintf(c.out, "Transcript cleared\n")

	case "/crawl":
		domains, prompt, _ := strings.Cut(arg, "--")
		prompt = strings.TrimSpace(prompt)
		resp, err := c.session.SubmitCrawl(ctx, strings.ReplaceAll(domains, ",", "\n"), prompt == "", prompt)
		if err != nil {
			c.notify(notice.FromError(err))
			return
		}
		color.New(color.FgGreen).Fprintf(c.out, "✓ %s (%s)\n", resp.Message, strings.Join(resp.Domains, ", "))

	default:
		c.fail.Fprintf(c.out, "Unknown command %s, type /help\n", name)
	}
}

func (c *cli) update(change func(s *session.Settings)) {
	settings := c.session.Settings()
	change(&settings)
	if err := c.session.UpdateSettings(settings); err != nil {
		c.notify(notice.FromError(err))
		return
	}
	c.info.Fprintf(c.out, "Settings updated\n")
}

func (c *cli) listDomains(domains []models.CompanyDomain) {
	selected, _ := c.session.Selected()
	c.info.Fprintf(c.out, "\nCompanies:\n")
	for i, d := range domains {
		marker := " "
		if d.Domain == selected.Domain {
			marker = "*"
		}
		fmt.Fprintf(c.out, " %s %d. %s (%s)\n", marker, i+1, d.DisplayName(), d.Domain)
	}
}

func (c *cli) notify(notices []notice.Notice) {
	for _, n := range notices {
		p := c.info
		switch n.Level {
		case notice.LevelWarning:
			p = c.warn
		case notice.LevelError:
			p = c.fail
		}
		msg := n.Message
		if n.Timeout {
			msg += " (timed out)"
		}
		p.Fprintf(c.out, "! %s\n", msg)
	}
}
