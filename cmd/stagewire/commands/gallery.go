package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/lumenstage/stagewire/pkg/gallery"
)

var (
	flagGalleryDir   string
	flagGalleryLimit int
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Inspect the render job index",
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent render jobs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runGalleryList,
}

var galleryShowCmd = &cobra.Command{
	Use:   "show <request-id>",
	Short: "Print one render job record as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runGalleryShow,
}

var galleryRemoveCmd = &cobra.Command{
	Use:   "rm <request-id>",
	Short: "Remove a render job record",
	Args:  cobra.ExactArgs(1),
	RunE:  runGalleryRemove,
}

func init() {
	galleryCmd.PersistentFlags().StringVar(&flagGalleryDir, "dir", "", "gallery directory (default from render.gallery_dir)")
	galleryListCmd.Flags().IntVarP(&flagGalleryLimit, "limit", "n", 20, "maximum records to list")
	galleryCmd.AddCommand(galleryListCmd)
	galleryCmd.AddCommand(galleryShowCmd)
	galleryCmd.AddCommand(galleryRemoveCmd)
	rootCmd.AddCommand(galleryCmd)
}

func openGallery() (gallery.Index, error) {
	dir := flagGalleryDir
	if dir == "" {
		settings, err := loadSettings()
		if err != nil {
			return nil, err
		}
		dir = settings.Render.GalleryDir
	}
	if dir == "" {
		return nil, errors.New("no gallery directory: pass --dir or set render.gallery_dir in the config file")
	}
	index, err := gallery.NewBadger(gallery.BadgerOptions{Dir: dir})
	if err != nil {
		return nil, err
	}
	return index, nil
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	index, err := openGallery()
	if err != nil {
		return err
	}
	defer index.Close()

	recs, err := index.Recent(cmd.Context(), flagGalleryLimit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("no render jobs")
		return nil
	}
	for _, rec := range recs {
		fmt.Printf("%-22s %6s %8s  %s\n",
			rec.RequestID,
			age(rec.CreatedAt),
			fmt.Sprintf("%dms", rec.Elapsed),
			truncate(rec.Prompt, 60))
	}
	return nil
}

func runGalleryShow(cmd *cobra.Command, args []string) error {
	index, err := openGallery()
	if err != nil {
		return err
	}
	defer index.Close()

	rec, err := index.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(rec)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

func runGalleryRemove(cmd *cobra.Command, args []string) error {
	index, err := openGallery()
	if err != nil {
		return err
	}
	defer index.Close()

	if err := index.Remove(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("removed %s\n", args[0])
	return nil
}

// age formats how long ago t was, in the largest round unit.
func age(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
