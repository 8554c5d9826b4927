package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/ochronus/goneocities/internal/app"
	"github.com/ochronus/goneocities/internal/publish"
	"github.com/ochronus/goneocities/internal/services/neocities"
	"github.com/ochronus/goneocities/internal/site"
	"github.com/ochronus/goneocities/internal/utils"
	"github.com/spf13/cobra"
)

// checked runs an API call and turns error envelopes into errors
func checked(body string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if err := neocities.CheckResult(body); err != nil {
		return "", err
	}
	return body, nil
}

// publicInfo fetches a site's public info, using the configured client when a
// valid config loads and an anonymous client otherwise.
func publicInfo(siteName, baseURL string) (string, error) {
	if container, err := loadContainer(); err == nil {
		return container.Client.InfoNoAuth(siteName)
	}
	return neocities.NewClientNoAuth(neocities.WithBaseURL(baseURL)).InfoNoAuth(siteName)
}

func newInfoCmd() *cobra.Command {
	var siteName, baseURL string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show site information",
		RunE: func(cmd *cobra.Command, args []string) error {
			var body string
			var err error
			if siteName != "" {
				body, err = publicInfo(siteName, baseURL)
			} else {
				var container *app.Container
				container, err = loadContainer()
				if err != nil {
					return err
				}
				body, err = container.Client.Info()
			}
			if err != nil {
				return err
			}
			info, err := neocities.DecodeInfo(body)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "sitename:\t%s\n", info.Info.Sitename)
			fmt.Fprintf(w, "views:\t%d\n", info.Info.Views)
			fmt.Fprintf(w, "hits:\t%d\n", info.Info.Hits)
			fmt.Fprintf(w, "created:\t%s\n", info.Info.CreatedAt)
			fmt.Fprintf(w, "updated:\t%s\n", deref(info.Info.LastUpdated))
			fmt.Fprintf(w, "domain:\t%s\n", deref(info.Info.Domain))
			fmt.Fprintf(w, "tags:\t%v\n", info.Info.Tags)
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&siteName, "site", "s", "", "Show a public site instead of your own")
	cmd.Flags().StringVar(&baseURL, "base-url", neocities.DefaultBaseURL, "API base URL used for --site when no config is available")
	return cmd
}

func newListCmd() *cobra.Command {
	var dir string
	var raw bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List files on the site",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := loadContainer()
			if err != nil {
				return err
			}

			var body string
			if dir != "" {
				body, err = container.Client.List(dir)
			} else {
				body, err = container.Client.ListAll()
			}
			if err != nil {
				return err
			}
			if raw {
				fmt.Fprintln(cmd.OutOrStdout(), body)
				return nil
			}

			entries, err := site.ParseManifest(body)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, e := range entries {
				switch e := e.(type) {
				case *site.File:
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", e.Path, e.Size, e.SHA1Hash, site.FormatRFC2822(e.Modified))
				case *site.Dir:
					fmt.Fprintf(w, "%s/\t-\t-\t%s\n", e.Path, site.FormatRFC2822(e.Modified))
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&dir, "path", "p", "", "Only list entries under this directory")
	cmd.Flags().BoolVar(&raw, "json", false, "Print the raw API response")
	return cmd
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <local> <remote>",
		Short: "Upload a single file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := loadContainer()
			if err != nil {
				return err
			}

			catalog, err := site.Load(container.Client)
			if err != nil {
				return err
			}
			changed, err := catalog.FileChangedLocal(args[0], "/"+trimSlash(args[1]))
			if err != nil {
				return err
			}
			if !changed {
				container.Logger.Infof("%s is unchanged, skipping", args[1])
				return nil
			}

			if _, err := checked(container.Client.Upload(args[0], trimSlash(args[1]))); err != nil {
				return err
			}
			container.Logger.Infof("uploaded %s", args[1])
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <remote>...",
		Short: "Delete files from the site",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := loadContainer()
			if err != nil {
				return err
			}

			names := make([]string, 0, len(args))
			for _, a := range args {
				names = append(names, trimSlash(a))
			}
			if _, err := checked(container.Client.DeleteMultiple(names)); err != nil {
				return err
			}
			container.Logger.Infof("deleted %d file(s)", len(names))
			return nil
		},
	}
}

func newKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key",
		Short: "Print the account's API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := loadContainer()
			if err != nil {
				return err
			}
			key, err := utils.GetAPIKey(container.Client)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newDiffCmd() *cobra.Command {
	var deleteRemote bool

	cmd := &cobra.Command{
		Use:   "diff [dir]",
		Short: "Show which local files differ from the site",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			container, dir, err := siteSetup(args)
			if err != nil {
				return err
			}
			pub, err := newPublisher(container)
			if err != nil {
				return err
			}

			plan, err := pub.Plan(ctx, dir, container.Config.Exclude, container.Config.HashWorkers,
				deleteRemote || container.Config.DeleteRemote)
			if err != nil {
				return err
			}
			printPlan(cmd, plan)
			return nil
		},
	}
	cmd.Flags().BoolVar(&deleteRemote, "delete", false, "Also list remote files missing locally")
	return cmd
}

func newPushCmd() *cobra.Command {
	var dryRun, deleteRemote bool

	cmd := &cobra.Command{
		Use:   "push [dir]",
		Short: "Upload changed files and optionally delete removed ones",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			container, dir, err := siteSetup(args)
			if err != nil {
				return err
			}
			pub, err := newPublisher(container)
			if err != nil {
				return err
			}

			plan, err := pub.Plan(ctx, dir, container.Config.Exclude, container.Config.HashWorkers,
				deleteRemote || container.Config.DeleteRemote)
			if err != nil {
				return err
			}
			if dryRun {
				printPlan(cmd, plan)
			}

			result, err := pub.Apply(ctx, plan, dryRun)
			if err != nil {
				return err
			}
			container.Logger.Infof("push complete: %d uploaded (%d bytes), %d deleted, %d unchanged",
				result.Uploaded, result.UploadedBytes, result.Deleted, result.Unchanged)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show the plan without changing the site")
	cmd.Flags().BoolVar(&deleteRemote, "delete", false, "Delete remote files missing locally")
	return cmd
}

// siteSetup resolves the site directory from args or config
func siteSetup(args []string) (*app.Container, string, error) {
	container, err := loadContainer(app.WithCredentialValidation(true))
	if err != nil {
		return nil, "", err
	}

	dir := container.Config.SiteDirectory
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		return nil, "", fmt.Errorf("no site directory given and site_directory is not set")
	}
	return container, dir, nil
}

func newPublisher(container *app.Container) (*publish.Publisher, error) {
	catalog, err := site.Load(container.Client)
	if err != nil {
		return nil, fmt.Errorf("failed to load site list: %w", err)
	}
	container.Logger.Debugf("site has %d entries, %d bytes", catalog.Len(), catalog.TotalSize())
	return publish.NewPublisher(container.Client, catalog, container.Logger, container.Config.UploadBatchSize), nil
}

func printPlan(cmd *cobra.Command, plan publish.Plan) {
	out := cmd.OutOrStdout()
	if plan.Empty() {
		fmt.Fprintln(out, "site is up to date")
		return
	}
	for _, c := range plan.Uploads {
		fmt.Fprintf(out, "%-8s %s\n", c.Reason, c.File.RemotePath())
	}
	for _, p := range plan.Deletes {
		fmt.Fprintf(out, "%-8s %s\n", "delete", p)
	}
	fmt.Fprintf(out, "%d to upload (%d bytes), %d to delete, %d unchanged\n",
		len(plan.Uploads), plan.UploadBytes(), len(plan.Deletes), len(plan.Unchanged))
}

func trimSlash(p string) string {
	return strings.TrimLeft(p, "/")
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
