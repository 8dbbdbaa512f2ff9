package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/devilmonastery/studenthistory/internal/auth"
	"github.com/devilmonastery/studenthistory/internal/config"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
	"github.com/devilmonastery/studenthistory/internal/domain/services"
)

// withRepositories opens the database for a one-shot command
func withRepositories(ctx context.Context, cfg *config.Config, fn func(*repositories.Repositories) error) error {
	conn, err := openDatabase(ctx, cfg, slog.Default().With("component", "cli"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(newRepositories(conn))
}

func newAdminCommand(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin account management",
	}
	cmd.AddCommand(newAdminCreateCommand(cfg))
	cmd.AddCommand(newAdminPasswordCommand(cfg))
	return cmd
}

// readPassword prompts on the terminal unless the password was passed as a flag
func readPassword(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1024))
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if !bytes.Equal(first, second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func newAdminCreateCommand(cfg func() *config.Config) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin panel account",
		Example: `  # Prompt for the password
  studenthistory admin create --username tutor`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			return withRepositories(cmd.Context(), cfg(), func(repos *repositories.Repositories) error {
				// The JWT manager is not used for account creation
				svc := services.NewAdminService(repos.Admins, auth.NewJWTManager("unused", time.Hour), slog.Default())
				admin, err := svc.CreateAdmin(cmd.Context(), username, pw)
				if err != nil {
					return fmt.Errorf("failed to create admin: %w", err)
				}
				slog.Info("Admin created", "admin_id", admin.ID, "username", admin.Username)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Admin username (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted when omitted)")
	cmd.MarkFlagRequired("username")
	return cmd
}

func newAdminPasswordCommand(cfg func() *config.Config) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Set the password of an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			return withRepositories(cmd.Context(), cfg(), func(repos *repositories.Repositories) error {
				svc := services.NewAdminService(repos.Admins, auth.NewJWTManager("unused", time.Hour), slog.Default())
				if err := svc.SetPassword(cmd.Context(), username, pw); err != nil {
					return fmt.Errorf("failed to set password: %w", err)
				}
				slog.Info("Admin password updated", "username", username)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Admin username (required)")
	cmd.Flags().StringVar(&password, "password", "", "New password (prompted when omitted)")
	cmd.MarkFlagRequired("username")
	return cmd
}

func newStudentCommand(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "student",
		Short: "Student management",
	}
	cmd.AddCommand(newStudentImportCommand(cfg))
	return cmd
}

// parseStudentFile reads a slug to full name map. JSON is valid YAML, so
// both students.json and students.yaml work.
func parseStudentFile(data []byte) (map[string]string, error) {
	entries := map[string]string{}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse student file: %w", err)
	}
	if len(entries) == 0 {
		return nil, errors.New("student file is empty")
	}
	return entries, nil
}

func newStudentImportCommand(cfg func() *config.Config) *cobra.Command {
	var file, createdBy string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create students and access tokens from a slug to name map",
		Example: `  studenthistory student import --file students.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			entries, err := parseStudentFile(data)
			if err != nil {
				return err
			}

			return withRepositories(cmd.Context(), cfg(), func(repos *repositories.Repositories) error {
				tokens := services.NewTokenService(repos.Tokens, repos.Students)
				students := services.NewStudentService(repos.Students, tokens, slog.Default())
				result, err := students.Import(cmd.Context(), entries, createdBy)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, t := range result.Created {
					slug := ""
					if t.Student != nil {
						slug = t.Student.Slug
					}
					fmt.Fprintf(out, "%s\t%s\n", slug, services.AccessURL(cfg().Server.BaseURL, t.Token))
				}
				for _, slug := range result.Skipped {
					fmt.Fprintf(out, "%s\tskipped (already exists)\n", slug)
				}
				slog.Info("Import finished", "created", len(result.Created), "skipped", len(result.Skipped))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "students.json", "YAML or JSON file mapping slug to full name")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "Recorded as the token creator (defaults to auto_migration)")
	return cmd
}

func newTokenCommand(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Access token management",
	}
	cmd.AddCommand(newTokenGenerateCommand(cfg))
	return cmd
}

func newTokenGenerateCommand(cfg func() *config.Config) *cobra.Command {
	var (
		slug string
		days int
		note string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an access link for a student",
		Example: `  # Link valid for 30 days
  studenthistory token generate --student ivan --days 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return errors.New("--days must not be negative")
			}
			return withRepositories(cmd.Context(), cfg(), func(repos *repositories.Repositories) error {
				student, err := repos.Students.GetBySlug(cmd.Context(), strings.ToLower(slug))
				if err != nil {
					return fmt.Errorf("failed to get student: %w", err)
				}
				if student == nil {
					return fmt.Errorf("student %q not found", slug)
				}

				tokens := services.NewTokenService(repos.Tokens, repos.Students)
				token, err := tokens.Generate(cmd.Context(), services.GenerateTokenRequest{
					StudentID: student.ID,
					ExpiresIn: time.Duration(days) * 24 * time.Hour,
					CreatedBy: "cli",
					Note:      note,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), services.AccessURL(cfg().Server.BaseURL, token.Token))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&slug, "student", "", "Student slug (required)")
	cmd.Flags().IntVar(&days, "days", 0, "Days until the link expires (0 never expires)")
	cmd.Flags().StringVar(&note, "note", "", "Free-form note shown in the admin panel")
	cmd.MarkFlagRequired("student")
	return cmd
}
