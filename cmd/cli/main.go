// Command dk is a CLI client for the DocKeeper HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/doc-keeper/internal/model"
)

// ---- config/token store ----

type tokenFile struct {
	Addr        string    `json:"addr"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "dockeeper")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dockeeper")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(addr, tok string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{Addr: addr, AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errors.New("not logged in (run: dk login)")
		}
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// parseLoc splits "project/discipline/phase/filename".
func parseLoc(s string) (model.FileLocation, error) {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) != 4 {
		return model.FileLocation{}, fmt.Errorf("want project/discipline/phase/filename, got %q", s)
	}
	for _, p := range parts {
		if p == "" {
			return model.FileLocation{}, fmt.Errorf("empty segment in %q", s)
		}
	}
	return model.FileLocation{Project: parts[0], Discipline: parts[1], Phase: parts[2], Filename: parts[3]}, nil
}

// ---- commands ----

var (
	version   = "dev"
	buildDate = "unknown"
)

type globals struct {
	addr     string
	caPath   string
	insecure bool
	timeout  time.Duration
}

func (g *globals) client(authed bool) (*client, error) {
	tok := ""
	if authed {
		var err error
		if tok, err = loadToken(); err != nil {
			return nil, err
		}
	}
	return newClient(g.addr, g.caPath, g.insecure, tok)
}

func (g *globals) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), g.timeout)
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "dk",
		Short:         "DocKeeper command-line client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.addr, "addr", "localhost:8080", "server address")
	root.PersistentFlags().StringVar(&g.caPath, "cacert", "", "CA cert (PEM)")
	root.PersistentFlags().BoolVar(&g.insecure, "insecure", false, "skip cert verify (dev)")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 5*time.Minute, "request timeout")

	root.AddCommand(
		versionCmd(),
		loginCmd(g),
		logoutCmd(),
		lsCmd(g),
		searchCmd(g),
		uploadCmd(g),
		fetchCmd(g, "view", "Show a stored file inline (needs view or download)", false),
		fetchCmd(g, "download", "Download a stored file (needs download)", true),
		logCmd(g),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dk %s (%s)\n", version, buildDate)
		},
	}
}

func loginCmd(g *globals) *cobra.Command {
	var user, pass string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Obtain and save a bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user == "" || pass == "" {
				return errors.New("need -u and -p")
			}
			c, err := g.client(false)
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			tok, err := c.Token(ctx, user, pass)
			if err != nil {
				return err
			}
			exp, err := time.Parse(time.RFC3339, tok.ExpiresAt)
			if err != nil {
				exp = time.Now().Add(15 * time.Minute)
			}
			if err := saveToken(g.addr, tok.AccessToken, exp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "username")
	cmd.Flags().StringVarP(&pass, "password", "p", "", "password")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := os.Remove(tokenPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func lsCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List projects, disciplines, phases and files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client(true)
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			t, err := c.Tree(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				printJSON(out, t)
				return nil
			}
			for _, p := range t.Projects {
				fmt.Fprintf(out, "%s/\n", p.Name)
				for _, d := range p.Disciplines {
					fmt.Fprintf(out, "  %s/\n", d.Name)
					for _, ph := range d.Phases {
						fmt.Fprintf(out, "    %s/\n", ph.Name)
						for _, f := range ph.Files {
							fmt.Fprintf(out, "      [%s] %s (%dB)\n", f.Kind, f.Filename, f.Size)
						}
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func searchCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "search <keyword>",
		Short: "Find files whose name contains keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client(true)
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			files, err := c.Search(ctx, args[0])
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f.Path)
			}
			return nil
		},
	}
}

func uploadCmd(g *globals) *cobra.Command {
	var project, discipline, phase, name, note string
	cmd := &cobra.Command{
		Use:   "upload <file|->",
		Short: "Upload a file; an existing one is kept as a versioned copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			if name == "" {
				if src == "-" {
					return errors.New("need --name when reading stdin")
				}
				name = filepath.Base(src)
			}
			var r io.Reader
			if src == "-" {
				r = cmd.InOrStdin()
			} else {
				f, err := os.Open(src)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			c, err := g.client(true)
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			loc := model.FileLocation{Project: project, Discipline: discipline, Phase: phase, Filename: name}
			up, err := c.Upload(ctx, loc, r, note)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), up)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project")
	cmd.Flags().StringVar(&discipline, "discipline", "", "discipline")
	cmd.Flags().StringVar(&phase, "phase", "", "phase")
	cmd.Flags().StringVar(&name, "name", "", "stored filename (default: source basename)")
	cmd.Flags().StringVar(&note, "note", "", "optional description recorded in the log")
	for _, f := range []string{"project", "discipline", "phase"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func fetchCmd(g *globals, use, short string, download bool) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   use + " <project/discipline/phase/filename>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := parseLoc(args[0])
			if err != nil {
				return err
			}
			c, err := g.client(true)
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, warnings, err := c.Fetch(ctx, loc, download, w)
			if err != nil {
				return err
			}
			for _, warn := range warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", warn)
			}
			if out != "" && out != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%dB)\n", out, n)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func logCmd(g *globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the newest action-log entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client(true)
			if err != nil {
				return err
			}
			ctx, cancel := g.ctx(cmd)
			defer cancel()
			es, err := c.Logs(ctx, limit)
			if err != nil {
				return err
			}
			for _, e := range es {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s %-10s %s\n", e.Timestamp, e.User, e.Action, e.File)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "entries to show (server default when 0)")
	return cmd
}

// main dispatches subcommands.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
