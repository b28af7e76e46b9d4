// Package cli implements the packer command line: parsing flags,
// discovering sibling module files and romfs data, running the
// blueflame pipeline, and writing the resulting program image.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pistonite/blueflame"
	"github.com/pistonite/blueflame/env"
	"github.com/pistonite/blueflame/program"
	"github.com/pistonite/blueflame/romfs"
)

var (
	flagRomfs   string
	flagOutput  string
	flagStart   string
	flagRegions []string
	flagDLC     bool
	flagMenuRel string
)

var rootCmd = &cobra.Command{
	Use:          "blueflamepack <sdk>",
	Short:        "Relocate a statically linked AArch64 game build into a packed program image",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runPack,
}

func init() {
	rootCmd.Flags().StringVar(&flagRomfs, "romfs", "", "override path to the romfs game-data directory")
	rootCmd.Flags().StringVarP(&flagOutput, "output", "o", "program.bfi", "output path for the packed program image")
	rootCmd.Flags().StringVarP(&flagStart, "start", "s", "", "program base address in hex (required)")
	rootCmd.Flags().StringArrayVarP(&flagRegions, "regions", "r", nil, "region filter, repeatable: ([module]:)?HEX-HEX")
	rootCmd.Flags().BoolVar(&flagDLC, "dlc", false, "tag the output as the DLC variant of the detected version")
	rootCmd.Flags().StringVar(&flagMenuRel, "pause-menu-data-mgr", "", "rel_start (hex) at which to construct the PauseMenuDataMgr singleton")
	_ = rootCmd.MarkFlagRequired("start")
}

// Execute runs the packer command, returning the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runPack(cmd *cobra.Command, args []string) error {
	sdkPath := args[0]
	out := cmd.OutOrStdout()

	programStart, err := ParseProgramStart(flagStart)
	if err != nil {
		return err
	}

	filters, err := ParseRegionFilters(flagRegions)
	if err != nil {
		return err
	}

	paths, err := env.DiscoverModulePaths(sdkPath, statFile)
	if err != nil {
		return err
	}

	sdkData, err := os.ReadFile(paths.Sdk)
	if err != nil {
		return fmt.Errorf("read %s: %w", paths.Sdk, err)
	}
	version, err := env.DetectVersion(sdkData)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "-- detected version %s\n", version)

	files := blueflame.ModuleFiles{env.Sdk: sdkData}
	for _, kind := range []env.ModuleKind{env.Rtld, env.Main, env.Subsdk0} {
		data, err := os.ReadFile(paths.Path(kind))
		if err != nil {
			return fmt.Errorf("read %s: %w", paths.Path(kind), err)
		}
		files[kind] = data
	}

	opts := blueflame.BuildOptions{
		ProgramBase: programStart,
		DLC:         flagDLC,
		Filters:     filters,
	}

	if r, err := romfs.FindPaths(sdkPath, flagRomfs); err == nil {
		attachment, err := r.LoadActorInfoAttachment(os.ReadFile)
		if err != nil {
			return err
		}
		opts.ActorInfoData = attachment.Data
		fmt.Fprintln(out, "-- [romfs] loaded ActorInfo.product.sbyml")
	} else {
		fmt.Fprintf(out, "-- [romfs] skipping game data: %v\n", err)
	}

	if flagMenuRel != "" {
		relStart, err := parseHex32(flagMenuRel)
		if err != nil {
			return fmt.Errorf("--pause-menu-data-mgr: %w", err)
		}
		opts.PauseMenuDataMgrRelStart = relStart
	}

	p, warnings, err := blueflame.Build(files, version, opts)
	if err != nil {
		return err
	}
	if !warnings.Empty() {
		for _, name := range warnings.UnresolvedData {
			fmt.Fprintf(out, "-- [warn] unresolved GLOB_DAT symbol %q, writing zero\n", name)
		}
		for _, name := range warnings.UnresolvedPLT {
			fmt.Fprintf(out, "-- [warn] unresolved JUMP_SLOT symbol %q, writing zero\n", name)
		}
	}

	packed, err := program.Pack(p)
	if err != nil {
		return fmt.Errorf("pack program: %w", err)
	}
	if err := os.WriteFile(flagOutput, packed, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", flagOutput, err)
	}
	fmt.Fprintf(out, "-- wrote %s (%d bytes)\n", flagOutput, len(packed))
	return nil
}

var statFile = func(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
