package commands

import (
	"strings"

	"github.com/leapstack-labs/leaplg/internal/lgfile"
	"github.com/spf13/cobra"
)

// completeTemplateNames completes template names for shell completion.
// Parse errors produce no suggestions rather than an error.
func completeTemplateNames(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	templates, err := lgfile.LoadDir(getConfig().TemplatesDir)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	seen := make(map[string]bool, len(args))
	for _, a := range args {
		seen[a] = true
	}

	var names []string
	for _, t := range templates {
		if seen[t.Name] || !strings.HasPrefix(t.Name, toComplete) {
			continue
		}
		seen[t.Name] = true
		names = append(names, t.Name+"\t"+signature(t))
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
