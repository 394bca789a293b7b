package main

import (
	"fmt"
	"os"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/instpkg/instpkg/internal/build"
	"github.com/instpkg/instpkg/internal/catalog"
	"github.com/instpkg/instpkg/internal/command"
)

var (
	outputPath  string
	packageID   string
	extraPkgs   []string
	dmgOutput   bool
	configPath  string
	catalogURL  string
	keepScratch bool
	verbose     bool
)

// packagePatterns are the recognized installable-package forms for --pkg.
var packagePatterns = []glob.Glob{
	glob.MustCompile("*.pkg"),
	glob.MustCompile("*.mpkg"),
}

var rootCmd = &cobra.Command{
	Use:          "instpkg SOURCE",
	Short:        "Build an unattended OS installer package or disk image from a vendor installer",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}

		opts := build.Options{
			Source:        args[0],
			OutputPath:    outputPath,
			PackageID:     packageID,
			ExtraPackages: extraPkgs,
			DMGOutput:     dmgOutput,
			KeepScratch:   keepScratch,
			CatalogURL:    catalogURL,
		}
		if configPath != "" {
			config, err := parseConfig(configPath)
			if err != nil {
				return fmt.Errorf("could not load config file %s: %v", configPath, err)
			}
			opts = config.apply(opts, cmd.Flags())
		}

		for _, pkg := range opts.ExtraPackages {
			if !recognizedPackage(pkg) {
				return fmt.Errorf("%s does not look like an installable package", pkg)
			}
		}

		out, err := build.New(command.ExecRunner{}, opts).Run()
		if err != nil {
			return err
		}
		logrus.Infof("wrote %s", out)
		return nil
	},
}

var compatCmd = &cobra.Command{
	Use:   "compat-update VERSION",
	Short: "Look up the installer compatibility update for an OS version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := catalog.NewClient(catalogURL).CompatibilityUpdateURL(args[0])
		if err != nil {
			return err
		}
		fmt.Println(url)
		return nil
	},
}

func recognizedPackage(path string) bool {
	for _, pattern := range packagePatterns {
		if pattern.Match(path) {
			return true
		}
	}
	return false
}

func main() {
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output path (default InstallOSX_<version>_<build> in the working directory)")
	rootCmd.Flags().StringVar(&packageID, "pkgid", "", "package identifier of the output bundle")
	rootCmd.Flags().StringArrayVar(&extraPkgs, "pkg", nil, "extra installable package to inject, repeatable")
	rootCmd.Flags().BoolVar(&dmgOutput, "dmg", false, "produce a standalone disk image instead of a package bundle")
	rootCmd.Flags().StringVar(&configPath, "config", "", "TOML configuration file supplying the same options as flags")
	rootCmd.Flags().StringVar(&catalogURL, "catalog-url", "", "software-update catalog for the compatibility-update lookup")
	rootCmd.Flags().BoolVar(&keepScratch, "keep-scratch", false, "keep partial output and the scratch workspace on failure")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	compatCmd.Flags().StringVar(&catalogURL, "catalog-url", "", "software-update catalog to search")
	rootCmd.AddCommand(compatCmd)

	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
