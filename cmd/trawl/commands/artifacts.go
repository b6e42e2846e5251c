package commands

import (
	"context"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/trawl/blackboard"
	"github.com/teranos/trawl/display"
	"github.com/teranos/trawl/errors"
)

// ArtifactsCmd lists findings from the case database
var ArtifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "List extracted artifacts",
	Long: `List artifacts stored in the case database with their attributes.

Examples:
  trawl artifacts                              # Every artifact type
  trawl artifacts --type TSK_WEB_SEARCH_QUERY  # One type
  trawl artifacts --json`,
	RunE: runArtifacts,
}

var artifactTypeFlag string

func init() {
	ArtifactsCmd.Flags().StringVarP(&artifactTypeFlag, "type", "t", "", "Artifact type (e.g. TSK_WEB_HISTORY)")
}

type artifactReport struct {
	ID         int64             `json:"id"`
	Type       string            `json:"type"`
	ContentRef string            `json:"content_ref"`
	Attributes map[string]string `json:"attributes"`
}

// selectedTypes resolves the --type flag against the vocabulary.
func selectedTypes(flag string) ([]blackboard.ArtifactType, error) {
	if flag == "" {
		return blackboard.ArtifactTypes(), nil
	}
	t := blackboard.ArtifactType(strings.ToUpper(flag))
	if !t.Valid() {
		return nil, errors.WithHint(
			errors.Wrapf(errors.ErrInvalidRequest, "unknown artifact type %q", flag),
			"known types: "+typeList(),
		)
	}
	return []blackboard.ArtifactType{t}, nil
}

func typeList() string {
	var names []string
	for _, t := range blackboard.ArtifactTypes() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func collectArtifacts(ctx context.Context, store blackboard.Store, types []blackboard.ArtifactType) ([]artifactReport, error) {
	var out []artifactReport
	for _, t := range types {
		artifacts, err := store.ArtifactsByType(ctx, t)
		if err != nil {
			return nil, err
		}
		for _, a := range artifacts {
			attrs := make(map[string]string, len(a.Attributes))
			for _, attr := range a.Attributes {
				attrs[string(attr.Type)] = attr.String()
			}
			out = append(out, artifactReport{
				ID:         a.ID,
				Type:       string(a.Type),
				ContentRef: a.ContentRef,
				Attributes: attrs,
			})
		}
	}
	return out, nil
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	types, err := selectedTypes(artifactTypeFlag)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	store := blackboard.NewSQLStore(database, nil)
	reports, err := collectArtifacts(cmd.Context(), store, types)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(reports)
	}

	if len(reports) == 0 {
		pterm.Info.Println("No artifacts found")
		return nil
	}

	data := pterm.TableData{{"ID", "Type", "Content", "Attributes"}}
	for _, r := range reports {
		data = append(data, []string{
			pterm.Sprint(r.ID),
			blackboard.ArtifactType(r.Type).DisplayName(),
			r.ContentRef,
			formatAttributes(r.Attributes),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// formatAttributes renders attributes as sorted "KEY=value" pairs without
// the TSK_ prefix.
func formatAttributes(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strings.TrimPrefix(k, "TSK_") + "=" + attrs[k]
	}
	return strings.Join(parts, " ")
}
