package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/uwsgictl/internal/client"
	"github.com/danmuck/uwsgictl/internal/config"
	"github.com/spf13/cobra"
)

type requestFlags struct {
	profile     string
	network     string
	addr        string
	hostname    string
	method      string
	headers     []string
	form        []string
	data        string
	timeout     time.Duration
	modifier1   uint8
	modifier2   uint8
	bufferSize  int
	passThrough []string
	output      string
}

func newRequestCmd() *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:   "request [path]",
		Short: "Send one request to a uwsgi application server",
		Example: `  uwsgictl request --addr 127.0.0.1:3031 /api/items?limit=10
  uwsgictl request -X POST -d name=widget -d qty=3 /api/items
  uwsgictl request --profile app.toml -H "Accept: application/json" -o json /`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) == 1 {
				path = args[0]
			}
			return runRequest(cmd, f, path)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.profile, "profile", "", "client profile TOML file")
	flags.StringVar(&f.network, "network", "", "network: tcp or unix")
	flags.StringVar(&f.addr, "addr", "", "application server address (host:port or socket path)")
	flags.StringVar(&f.hostname, "hostname", "", "SERVER_NAME sent to the application")
	flags.StringVarP(&f.method, "method", "X", "GET", "request method")
	flags.StringArrayVarP(&f.headers, "header", "H", nil, `request header "Name: value" (repeatable)`)
	flags.StringArrayVarP(&f.form, "form", "d", nil, "form field key=value (repeatable)")
	flags.StringVar(&f.data, "data", "", "raw request body; takes precedence over --form")
	flags.DurationVar(&f.timeout, "timeout", 0, "request timeout (0 keeps the profile value)")
	flags.Uint8Var(&f.modifier1, "modifier1", 5, "packet modifier1")
	flags.Uint8Var(&f.modifier2, "modifier2", 0, "packet modifier2")
	flags.IntVar(&f.bufferSize, "buffer-size", 0, "variable block buffer size in bytes")
	flags.StringArrayVar(&f.passThrough, "pass-through", nil, "header forwarded verbatim as a variable (repeatable)")
	flags.StringVarP(&f.output, "output", "o", "table", "output format: table, raw, json, yaml")
	return cmd
}

func runRequest(cmd *cobra.Command, f requestFlags, path string) error {
	formatter, err := NewFormatter(f.output)
	if err != nil {
		return err
	}
	backend, err := backendFromFlags(cmd, f)
	if err != nil {
		return err
	}
	if err := config.ValidateBackend(backend); err != nil {
		return fmt.Errorf("backend invalid: %w", err)
	}
	c, err := backend.NewClient()
	if err != nil {
		return err
	}

	opts := client.Options{
		Method:  f.method,
		Path:    path,
		Timeout: f.timeout,
	}
	if opts.Headers, err = parseHeaders(f.headers); err != nil {
		return err
	}
	if cmd.Flags().Changed("data") {
		opts.RawBody = []byte(f.data)
	} else if len(f.form) > 0 {
		if opts.Form, err = parseForm(f.form); err != nil {
			return err
		}
	}

	resp, err := c.Do(cmd.Context(), opts)
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) {
		fmt.Fprint(cmd.OutOrStdout(), formatter.Format(statusErr.Response))
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), formatter.Format(resp))
	return nil
}

// backendFromFlags layers explicitly set flags over the optional profile.
func backendFromFlags(cmd *cobra.Command, f requestFlags) (config.BackendConfig, error) {
	var backend config.BackendConfig
	if f.profile != "" {
		var err error
		if backend, err = loadProfile(f.profile); err != nil {
			return config.BackendConfig{}, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("network") {
		backend.Network = f.network
	}
	if changed("addr") {
		backend.Address = f.addr
	}
	if changed("hostname") {
		backend.Hostname = f.hostname
	}
	if changed("modifier1") {
		m := f.modifier1
		backend.Modifier1 = &m
	}
	if changed("modifier2") {
		m := f.modifier2
		backend.Modifier2 = &m
	}
	if changed("buffer-size") {
		backend.BufferSize = f.bufferSize
	}
	if changed("pass-through") {
		backend.HeadersWithoutChanges = normalizeNames(f.passThrough)
	}
	return backend, nil
}

func parseHeaders(in []string) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(in))
	for _, h := range in {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: want \"Name: value\"", h)
		}
		out[name] = strings.TrimSpace(value)
	}
	return out, nil
}

func parseForm(in []string) (map[string]string, error) {
	out := make(map[string]string, len(in))
	for _, field := range in {
		key, value, ok := strings.Cut(field, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid form field %q: want key=value", field)
		}
		out[key] = value
	}
	return out, nil
}
