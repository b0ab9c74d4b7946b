package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"trimfit/internal/adapter/tailorapi"
	"trimfit/internal/app"
	"trimfit/internal/domain"

	"github.com/urfave/cli/v2"
)

func tailorCmd() *cli.Command {
	return &cli.Command{
		Name:      "tailor",
		Usage:     "Send a resume straight to the tailoring API and print the suggestions",
		ArgsUsage: "RESUME.docx",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "job", Aliases: []string{"j"}, Usage: "job description text"},
			&cli.PathFlag{Name: "job-file", Usage: "read the job description from a file"},
			&cli.PathFlag{Name: "out", Aliases: []string{"o"}, Usage: "save the tailored document here"},
			&cli.StringFlag{Name: "api", Usage: "tailoring API base URL, overrides TAILOR_API_URL"},
		},
		Action: runTailor,
	}
}

func runTailor(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected exactly one resume file")
	}
	cfg, err := loadConfig(c, false)
	if err != nil {
		return err
	}

	resumePath := c.Args().First()
	content, err := os.ReadFile(resumePath)
	if err != nil {
		return err
	}
	jd := c.String("job")
	if f := c.Path("job-file"); f != "" {
		b, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		jd = string(b)
	}
	up := domain.Upload{Filename: filepath.Base(resumePath), Content: content, JobDescription: jd}
	if err := app.ValidateUpload(up); err != nil {
		return err
	}

	base := cfg.TailorAPIURL
	if v := c.String("api"); v != "" {
		base = v
	}
	client, err := tailorapi.New(base, tailorapi.WithTimeout(cfg.TailorAPITimeout))
	if err != nil {
		return err
	}

	resp, err := client.Tailor(c.Context, up, func(status string) {
		fmt.Fprintln(c.App.ErrWriter, status)
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", app.ErrTailorFailed, resp.Message)
	}
	printSuggestions(c.App.Writer, resp)

	out := c.Path("out")
	if out == "" || resp.Data.DownloadInfo.FileID == "" {
		return nil
	}
	rc, err := client.Download(c.Context, resp.Data.DownloadInfo.FileID)
	if err != nil {
		return err
	}
	defer rc.Close()
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "saved %s\n", out)
	return nil
}

func printSuggestions(w io.Writer, resp *domain.TailorResponse) {
	fmt.Fprintf(w, "%s (%.1fs)\n", resp.Message, resp.ProcessingTime)
	section := func(name string, s *domain.Suggestion) {
		if s == nil {
			return
		}
		fmt.Fprintf(w, "\n%s\n  %s\n", name, s.SuggestedImprovements)
		for _, change := range s.RecommendedChanges {
			fmt.Fprintf(w, "  - %s\n", change)
		}
	}
	section("Experience", resp.Data.TextSuggestions.Experience)
	section("Projects", resp.Data.TextSuggestions.Projects)
}
