package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

type envSection struct {
	title string
	flags []string
}

var envSections = []envSection{
	{"SoundCloud API", []string{"client-id", "api-base-url", "api-timeout-secs", "media-timeout-secs"}},
	{"Download", []string{
		"download-dir", "transcoding-index", "transcoding-protocol", "transcoding-mime",
		"cover-size", "cover-mime", "parallel-fetch",
	}},
	{"Metadata Overrides", []string{"title", "artist", "album", "genre"}},
	{"HTTP Server (serve mode)", []string{"server-host", "server-port", "rate-limit-per-minute"}},
	{"Application", []string{"language", "dedup-capacity"}},
	{"Logging", []string{"log-level", "log-format"}},
}

func generateEnvExample(flags *pflag.FlagSet) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(flags)

	if err := os.WriteFile(".env.example", []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Println("✅ Successfully generated .env.example file")
	return nil
}

func generateEnvExampleContent(flags *pflag.FlagSet) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# scgrab Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	content.WriteString("# Format: " + envPrefix + "_<SETTING>=value\n")
	content.WriteString("# CLI equivalent: --<setting>\n")
	content.WriteString("#\n")

	for _, section := range envSections {
		generateSection(&content, flags, section)
	}

	return content.String()
}

func generateSection(content *strings.Builder, flags *pflag.FlagSet, section envSection) {
	content.WriteString("\n# -----------------------------------------------------------------------------\n")
	fmt.Fprintf(content, "# %s\n", section.title)
	content.WriteString("# -----------------------------------------------------------------------------\n")

	for _, name := range section.flags {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		fmt.Fprintf(content, "# %s (CLI: --%s)\n", f.Usage, name)
		if f.DefValue == "" {
			fmt.Fprintf(content, "# %s=\n", flagToEnvVar(name))
			continue
		}
		fmt.Fprintf(content, "%s=%s\n", flagToEnvVar(name), f.DefValue)
	}
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}
