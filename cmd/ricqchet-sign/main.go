// Command ricqchet-sign prints a Ricqchet signature header for a payload, for
// driving a receiver by hand with curl.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ricqchet/webhook-receiver/pkg/config"
	"github.com/ricqchet/webhook-receiver/pkg/signature"
)

const defaultSecretRef = "env:RICQCHET_SIGNING_SECRET"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "ricqchet-sign: %v\n", err)
		os.Exit(2)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("ricqchet-sign", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	secretRef := fs.String("secret", defaultSecretRef, "signing secret, as a literal or env:NAME")
	timestamp := fs.Uint64("timestamp", 0, "unix timestamp to sign with (default now)")
	valueOnly := fs.Bool("value", false, "print only the header value")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: ricqchet-sign [-secret ref] [-timestamp n] [-value] <body-file|->")
	}

	secret, err := config.ParseSecretRef(*secretRef).Resolve(nil)
	if err != nil {
		return err
	}

	body, err := readBody(fs.Arg(0), stdin)
	if err != nil {
		return err
	}

	signer, err := signature.NewSigner(secret)
	if err != nil {
		return err
	}

	ts := *timestamp
	if ts == 0 {
		ts = uint64(time.Now().Unix())
	}
	header := signer.Sign(ts, body)

	if *valueOnly {
		_, err = fmt.Fprintln(stdout, header)
	} else {
		_, err = fmt.Fprintf(stdout, "%s: %s\n", signature.HeaderSignature, header)
	}
	return err
}

func readBody(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}
