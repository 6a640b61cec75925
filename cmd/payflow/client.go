package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/apperr"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/cli"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/flow"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/model"
	"github.com/iliamunaev/Payment-Flow-Orchestration/internal/service/qrscan"
)

var errQuit = errors.New("quit")

const redrawEvery = 100 * time.Millisecond

// client drives a flow from line-oriented input.
type client struct {
	f     *flow.Flow
	in    *bufio.Scanner
	out   io.Writer
	color bool
}

func newClient(f *flow.Flow, in io.Reader, out io.Writer, color bool) *client {
	return &client{f: f, in: bufio.NewScanner(in), out: out, color: color}
}

// loop renders the current step and runs its prompt until the user quits
// or the input ends.
func (c *client) loop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		snap := c.f.Snapshot()
		cli.Header(c.out, snap)

		var err error
		switch snap.Step {
		case model.StepSelectMethod:
			err = c.selectMethod()
		case model.StepEnterDetails:
			if snap.Method == model.MethodQRCode {
				err = c.scan(ctx)
			} else {
				err = c.details(ctx)
			}
		case model.StepEnterPIN:
			err = c.enterPIN(ctx, snap)
		case model.StepProcessing:
			err = c.await(ctx)
		case model.StepResult:
			err = c.result(snap)
		}

		switch {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			c.printErr(err)
		}
	}
}

func (c *client) prompt(label string) (string, error) {
	fmt.Fprintf(c.out, "%s: ", label)
	if !c.in.Scan() {
		fmt.Fprintln(c.out)
		return "", errQuit
	}
	return strings.TrimSpace(c.in.Text()), nil
}

func (c *client) printErr(err error) {
	msg := apperr.Message(err)
	if c.color {
		msg = cli.ColorRed + msg + cli.ColorReset
	}
	fmt.Fprintf(c.out, "! %s\n", msg)
}

func (c *client) selectMethod() error {
	in, err := c.prompt("Pay by [1] account number or [2] QR code (q to quit)")
	if err != nil {
		return err
	}
	switch in {
	case "1":
		return c.f.Choose(model.MethodAccount)
	case "2":
		return c.f.Choose(model.MethodQRCode)
	case "q":
		return errQuit
	default:
		return apperr.New(apperr.ErrWrongStep, "Choose 1 or 2")
	}
}

func (c *client) details(ctx context.Context) error {
	e, err := c.f.Account()
	if err != nil {
		return err
	}
	acct, err := c.prompt("Recipient account number (b to go back)")
	if err != nil {
		return err
	}
	if acct == "b" {
		return c.f.Back()
	}
	e.SetAccountNumber(acct)
	if err := e.Verify(ctx); err != nil {
		return err
	}
	if v := e.View(); v.Name != "" {
		fmt.Fprintf(c.out, "  Recipient: %s\n", v.Name)
	}

	amount, err := c.prompt("Amount (₹)")
	if err != nil {
		return err
	}
	e.SetAmount(amount)
	note, err := c.prompt("Note (optional)")
	if err != nil {
		return err
	}
	e.SetNote(note)
	return e.Submit()
}

func (c *client) scan(ctx context.Context) error {
	s, err := c.f.Scanner()
	if err != nil {
		return err
	}
	if v := s.View(); v.Mode == qrscan.ModeAmount {
		fmt.Fprintf(c.out, "  Scanned %s %s\n", v.Account, v.Name)
		amount, err := c.prompt("Amount (₹)")
		if err != nil {
			return err
		}
		s.SetAmount(amount)
		note, err := c.prompt("Note (optional)")
		if err != nil {
			return err
		}
		s.SetNote(note)
		return s.SubmitAmount()
	}

	in, err := c.prompt("[c] camera  [f] image file  [d] demo  (b to go back)")
	if err != nil {
		return err
	}
	switch in {
	case "c":
		fmt.Fprintln(c.out, "  Point the camera at a QR code...")
		return s.ScanCamera(ctx)
	case "f":
		path, err := c.prompt("Image path")
		if err != nil {
			return err
		}
		file, err := os.Open(path)
		if err != nil {
			return apperr.New(apperr.ErrImageDecode, "Could not open "+path)
		}
		defer file.Close()
		return s.DecodeImage(ctx, file)
	case "d":
		return s.Demo(ctx)
	case "b":
		return c.f.Back()
	default:
		return apperr.New(apperr.ErrWrongStep, "Choose c, f, d or b")
	}
}

func (c *client) enterPIN(ctx context.Context, snap flow.Snapshot) error {
	leaf, err := c.f.PIN()
	if err != nil {
		return err
	}
	if snap.PIN != nil && snap.PIN.Error != "" {
		fmt.Fprintf(c.out, "  %s\n", cli.PINCells(snap.PIN.Filled))
	}
	p, err := c.prompt("4-digit PIN (b to go back)")
	if err != nil {
		return err
	}
	if p == "b" {
		return c.f.Back()
	}
	if err := leaf.Fill(p); err != nil {
		return err
	}
	return leaf.Submit(ctx)
}

// await redraws the progress bar until the submission settles.
func (c *client) await(ctx context.Context) error {
	bar := cli.NewProgressBar(c.out, c.color)
	defer bar.Finish()

	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		_, err := c.f.Wait(gctx)
		return err
	})
	g.Go(func() error {
		t := time.NewTicker(redrawEvery)
		defer t.Stop()
		for {
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return nil
			case <-t.C:
				if p := c.f.Snapshot().Progress; p != nil {
					bar.Render(*p)
				}
			}
		}
	})
	return g.Wait()
}

func (c *client) result(snap flow.Snapshot) error {
	if snap.Result != nil {
		cli.Summary(c.out, *snap.Result, c.color)
	}
	in, err := c.prompt("[n] new payment  [q] quit")
	if err != nil {
		return err
	}
	if in != "n" {
		return errQuit
	}
	c.f.Reset()
	return nil
}
