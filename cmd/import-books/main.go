// Command import-books seeds the catalog from a CSV file and creates
// staff accounts. Meant for initial setup and for topping up the
// catalog between semesters.
//
//	import-books books --config config/config.yaml --csv books.csv
//	import-books staff --config config/config.yaml --email lib@example.com --role librarian
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"LMS-backend/internal/platform/auth"
	"LMS-backend/internal/platform/db"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "import-books",
		Short:         "Seed the library database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to config file")
	root.AddCommand(booksCmd(), staffCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func connect() (*sql.DB, error) {
	cfg, err := db.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return db.Connect(cfg.DB)
}

func booksCmd() *cobra.Command {
	var csvPath string
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Import books from a CSV file (title,author,genre,year,copies)",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect()
			if err != nil {
				return err
			}
			defer conn.Close()

			f, err := os.Open(csvPath)
			if err != nil {
				return err
			}
			defer f.Close()

			r := csv.NewReader(f)
			r.FieldsPerRecord = 5

			imported, skipped := 0, 0
			for line := 1; ; line++ {
				rec, err := r.Read()
				if err == io.EOF {
					break
				}
				if err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
				if line == 1 && strings.EqualFold(rec[0], "title") {
					continue // header row
				}
				year, err := strconv.Atoi(strings.TrimSpace(rec[3]))
				if err != nil {
					fmt.Printf("line %d: bad year %q, skipping\n", line, rec[3])
					skipped++
					continue
				}
				copies, err := strconv.Atoi(strings.TrimSpace(rec[4]))
				if err != nil || copies < 0 {
					fmt.Printf("line %d: bad copy count %q, skipping\n", line, rec[4])
					skipped++
					continue
				}
				_, err = conn.ExecContext(cmd.Context(),
					`INSERT INTO books (title, author, genre, year_published, available_copies) VALUES (?, ?, ?, ?, ?)`,
					strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1]), strings.TrimSpace(rec[2]), year, copies,
				)
				if err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
				imported++
			}

			fmt.Printf("Imported %d books (%d skipped)\n", imported, skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "books.csv", "path to CSV file")
	return cmd
}

func staffCmd() *cobra.Command {
	var email, role string
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Create a librarian or admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != auth.RoleLibrarian && role != auth.RoleAdmin {
				return fmt.Errorf("role must be %s or %s", auth.RoleLibrarian, auth.RoleAdmin)
			}
			if email == "" {
				return fmt.Errorf("--email is required")
			}

			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			confirm, err := readPassword("Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return fmt.Errorf("passwords do not match")
			}
			if len(password) < 8 {
				return fmt.Errorf("password must be at least 8 characters")
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}

			conn, err := connect()
			if err != nil {
				return err
			}
			defer conn.Close()

			_, err = conn.ExecContext(context.Background(),
				`INSERT INTO accounts (id, password_hash, role, student_id, is_disabled) VALUES (?, ?, ?, NULL, 0)`,
				email, string(hash), role,
			)
			if err != nil {
				if db.IsDuplicate(err) {
					return fmt.Errorf("account %s already exists", email)
				}
				return err
			}

			fmt.Printf("Created %s account %s\n", role, email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (login id)")
	cmd.Flags().StringVar(&role, "role", auth.RoleLibrarian, "librarian or admin")
	return cmd
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
