package cmd

import "github.com/spf13/cobra"

func newConfigCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Manage registered APIs and global settings",
		Long: `Manage registered APIs and global settings.

APIs live under the configuration root ($APERTURE_CONFIG_DIR, or the
platform config directory joined with "aperture"): source documents in
specs/, compiled caches in .cache/ and settings in config.toml.`,
	}

	c.AddCommand(
		newConfigAddCmd(),
		newConfigListCmd(),
		newConfigRemoveCmd(),
		newConfigReinitCmd(),
		newConfigSetURLCmd(),
		newConfigSetVarCmd(),
		newConfigShowCmd(),
		newConfigClearCacheCmd(),
	)

	return c
}
