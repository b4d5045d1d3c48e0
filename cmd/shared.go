package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/recompkit/rkl/auth"
	"github.com/recompkit/rkl/client"
	"github.com/recompkit/rkl/config"
	"github.com/recompkit/rkl/db"
	"github.com/recompkit/rkl/library"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// commandContext returns the command's context, bounded by --timeout when set.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func loadSettings() (*config.Settings, error) {
	s, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	setupLogFile(s.LogFile)
	return s, nil
}

func authService(c *client.Client) (*auth.Service, error) {
	conn := db.GetDB()
	if conn == nil {
		return nil, fmt.Errorf("database is not initialized")
	}
	return auth.NewServiceWithRepo(db.NewTokenRepository(conn), auth.ClientVerifier{Client: c}), nil
}

// newClient builds the GitHub client with the token picked by the auth service.
func newClient(s *config.Settings) (*client.Client, error) {
	c := client.New(s.APIBaseURL, "", version)
	svc, err := authService(c)
	if err != nil {
		return nil, err
	}
	token, source := svc.ResolveToken(s.GitHubToken)
	c.Token = token
	c.Limiter = client.NewRateLimiter(s.DownloadRateLimit)
	log.Debug().Str("token_source", string(source)).Msg("GitHub token resolved")
	return c, nil
}

type session struct {
	settings *config.Settings
	manager  *library.Manager
}

// openLibrary loads settings and the games known locally. Nothing is fetched from
// the network yet.
func openLibrary(cmd *cobra.Command) (*session, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	c, err := newClient(s)
	if err != nil {
		return nil, err
	}
	m, err := library.NewWithClient(*s, c, db.GetDB(), cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	if err := m.LoadLocal(cmd.Context()); err != nil {
		_ = m.Close()
		return nil, err
	}
	return &session{settings: s, manager: m}, nil
}

func (s *session) close() {
	if err := s.manager.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close library")
	}
}

// persist writes the settings the library changed back to the settings file.
func (s *session) persist() error {
	onDisk, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	changed := s.manager.Settings()
	onDisk.GamesPath = changed.GamesPath
	onDisk.SortBy = changed.SortBy
	onDisk.ShowExperimental = changed.ShowExperimental
	onDisk.ShowCustom = changed.ShowCustom
	if err := onDisk.Save(configPath); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetRowLine(false)
	return table
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
