package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tasklyapp/taskly/internal/migrate"
	"github.com/tasklyapp/taskly/internal/ui"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "sync",
	Short:   "Upload all local tasks to the cloud",
	Long: `Upload every local day partition to the cloud.

Records are uploaded in batches; a failed batch is reported and skipped
so the rest of the data still lands. Re-running is safe: uploads are
idempotent upserts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		sess, err := a.session(ctx)
		if err != nil {
			return err
		}
		store, err := a.store(sess)
		if err != nil {
			return err
		}

		res, err := migrate.New(a.cache, store, a.logger).GuestToCloud(ctx, sess.User.ID)
		if err != nil {
			return err
		}

		fmt.Printf("%s Migrated %d task(s) to the cloud\n", ui.RenderPass("✓"), res.Migrated)
		for _, e := range res.Errors {
			fmt.Printf("%s %s\n", ui.RenderWarn("⚠"), e)
		}
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:     "backup",
	GroupID: "sync",
	Short:   "Download all cloud tasks into the local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		sess, err := a.session(ctx)
		if err != nil {
			return err
		}
		store, err := a.store(sess)
		if err != nil {
			return err
		}

		res, err := migrate.New(a.cache, store, a.logger).CloudToGuest(ctx, sess.User.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s Backed up %d task(s); now in guest mode\n", ui.RenderPass("✓"), res.BackedUp)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:     "export <file>",
	GroupID: "sync",
	Short:   "Export all local tasks to a YAML snapshot",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := migrate.ExportSnapshot(cmd.Context(), a.cache, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s Exported %d task(s) to %s\n", ui.RenderPass("✓"), n, args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "sync",
	Short:   "Import a YAML snapshot into the local cache",
	Long: `Import a snapshot created by 'taskly export'.

Days present in the snapshot overwrite the matching local partitions;
other days are untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := migrate.ImportSnapshot(cmd.Context(), a.cache, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s Imported %d task(s) from %s\n", ui.RenderPass("✓"), n, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, backupCmd, exportCmd, importCmd)
}
