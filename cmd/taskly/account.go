package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tasklyapp/taskly/internal/auth"
	"github.com/tasklyapp/taskly/internal/migrate"
	"github.com/tasklyapp/taskly/internal/ui"
)

// promptCredentials collects email and password, using an interactive
// form on a TTY and plain stdin otherwise.
func promptCredentials(email, password string) (string, string, error) {
	if email != "" && password != "" {
		return email, password, nil
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Email").Value(&email),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password),
		))
		if err := form.Run(); err != nil {
			return "", "", err
		}
	} else {
		reader := bufio.NewReader(os.Stdin)
		if email == "" {
			line, err := reader.ReadString('\n')
			if err != nil {
				return "", "", fmt.Errorf("failed to read email: %w", err)
			}
			email = strings.TrimSpace(line)
		}
		if password == "" {
			line, err := reader.ReadString('\n')
			if err != nil {
				return "", "", fmt.Errorf("failed to read password: %w", err)
			}
			password = strings.TrimSpace(line)
		}
	}

	if email == "" || password == "" {
		return "", "", errors.New("email and password are required")
	}
	return email, password, nil
}

// saveEndpointFlags persists --url/--key overrides to the credentials
// file so later runs pick them up.
func saveEndpointFlags(cmd *cobra.Command, a *app) error {
	url, _ := cmd.Flags().GetString("url")
	key, _ := cmd.Flags().GetString("key")
	if url == "" && key == "" {
		return nil
	}
	if url != "" {
		a.cfg.SupabaseURL = url
	}
	if key != "" {
		a.cfg.SupabaseKey = key
	}
	return a.cfg.WriteCredentials()
}

var loginCmd = &cobra.Command{
	Use:     "login",
	GroupID: "account",
	Short:   "Sign in and switch to cloud mode",
	Long: `Sign in with email and password, then migrate local tasks to the cloud.

Local tasks created in guest mode are uploaded after a successful
sign-in, so nothing is lost by switching modes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := saveEndpointFlags(cmd, a); err != nil {
			return err
		}

		client, err := a.authClient()
		if err != nil {
			return err
		}

		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		email, password, err = promptCredentials(email, password)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		sess, err := client.SignIn(ctx, email, password)
		if err != nil {
			return err
		}
		fmt.Printf("%s Signed in as %s\n", ui.RenderPass("✓"), ui.RenderAccent(sess.User.Email))

		// Move guest-mode tasks up to the cloud.
		store, err := a.store(sess)
		if err != nil {
			return err
		}
		res, err := migrate.New(a.cache, store, a.logger).GuestToCloud(ctx, sess.User.ID)
		if err != nil {
			return err
		}
		if res.Migrated > 0 {
			fmt.Printf("%s Migrated %d local task(s) to the cloud\n", ui.RenderPass("✓"), res.Migrated)
		}
		for _, e := range res.Errors {
			fmt.Printf("%s %s\n", ui.RenderWarn("⚠"), e)
		}
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:     "signup",
	GroupID: "account",
	Short:   "Create a new account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := saveEndpointFlags(cmd, a); err != nil {
			return err
		}

		client, err := a.authClient()
		if err != nil {
			return err
		}

		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		email, password, err = promptCredentials(email, password)
		if err != nil {
			return err
		}

		needsConfirmation, err := client.SignUp(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		if needsConfirmation {
			fmt.Printf("%s Account created. Check %s for a confirmation link, then run 'taskly login'.\n",
				ui.RenderPass("✓"), ui.RenderAccent(email))
			return nil
		}
		fmt.Printf("%s Account created and signed in. Run 'taskly login' to migrate local tasks.\n", ui.RenderPass("✓"))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: "account",
	Short:   "Sign out and switch back to guest mode",
	Long: `Sign out, backing up cloud tasks into the local cache first.

The backup requires the cloud to be reachable; when it isn't, sign-out
is refused rather than leaving tasks behind. Use --no-backup to skip.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		client, err := a.authClient()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		sess, err := client.CurrentSession(ctx)
		if errors.Is(err, auth.ErrNoSession) {
			fmt.Println("Not signed in")
			return nil
		}
		if err != nil {
			return err
		}

		if skip, _ := cmd.Flags().GetBool("no-backup"); !skip {
			store, err := a.store(sess)
			if err != nil {
				return err
			}
			res, err := migrate.New(a.cache, store, a.logger).CloudToGuest(ctx, sess.User.ID)
			if err != nil {
				return fmt.Errorf("backup failed, not signing out: %w", err)
			}
			fmt.Printf("%s Backed up %d task(s) locally\n", ui.RenderPass("✓"), res.BackedUp)
		}

		if err := client.SignOut(ctx); err != nil {
			return err
		}
		fmt.Printf("%s Signed out; running in guest mode\n", ui.RenderPass("✓"))
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	GroupID: "account",
	Short:   "Show the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		client, err := a.authClient()
		if err != nil {
			return err
		}

		sess, err := client.CurrentSession(cmd.Context())
		if errors.Is(err, auth.ErrNoSession) {
			fmt.Println("Not signed in (guest mode)")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(sessionBlob(sess))
		return nil
	},
}

var recoverCmd = &cobra.Command{
	Use:     "recover <email>",
	GroupID: "account",
	Short:   "Send a password reset email",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		client, err := a.authClient()
		if err != nil {
			return err
		}

		if err := client.Recover(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%s Password reset email sent to %s\n", ui.RenderPass("✓"), args[0])
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{loginCmd, signupCmd} {
		cmd.Flags().String("email", "", "Account email")
		cmd.Flags().String("password", "", "Account password (prompted when omitted)")
		cmd.Flags().String("url", "", "Project base URL (saved to credentials file)")
		cmd.Flags().String("key", "", "Project anon API key (saved to credentials file)")
	}
	logoutCmd.Flags().Bool("no-backup", false, "Skip the cloud-to-local backup")

	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, whoamiCmd, recoverCmd)
}
