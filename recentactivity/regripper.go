package recentactivity

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/trawl/am"
	"github.com/teranos/trawl/blackboard"
	"github.com/teranos/trawl/errors"
	"github.com/teranos/trawl/ingest"
	"github.com/teranos/trawl/logger"
)

// hive is a registry hive file and the report profile run over it.
type hive struct {
	name    string
	parent  string
	profile string
}

var hives = []hive{
	{name: "SOFTWARE", parent: "system32/config", profile: "software"},
	{name: "SYSTEM", parent: "system32/config", profile: "system"},
	{name: "SAM", parent: "system32/config", profile: "sam"},
	{name: "NTUSER.DAT", profile: "ntuser"},
}

// osInfoKeys maps report keys of the software profile to OS info attributes.
var osInfoKeys = map[string]blackboard.AttributeType{
	"productname":            blackboard.AttrProgName,
	"currentversion":         blackboard.AttrVersion,
	"registeredowner":        blackboard.AttrOwner,
	"registeredorganization": blackboard.AttrOrganization,
}

// RegistryAnalyzer runs an external hive report tool (RegRipper) over the
// registry hives of the data source, saves the reports and records the
// operating system information found in the SOFTWARE hive.
type RegistryAnalyzer struct {
	extractorBase
	command string
	// argv is the parsed command line; nil when no tool is configured
	argv []string
}

// NewRegistryAnalyzer creates the registry extractor. command is a shell
// quoted command line where {hive} and {profile} are substituted.
func NewRegistryAnalyzer(services *ingest.Services, command string) *RegistryAnalyzer {
	return &RegistryAnalyzer{
		extractorBase: newExtractorBase("Registry", services),
		command:       command,
	}
}

// Init parses the command line. A missing tool is not an init failure;
// it is reported when the analyzer runs.
func (r *RegistryAnalyzer) Init(ctx context.Context) error {
	if strings.TrimSpace(r.command) == "" {
		return nil
	}
	argv, err := shellquote.Split(r.command)
	if err != nil {
		return errors.Wrap(err, "invalid registry ripper command")
	}
	if len(argv) == 0 {
		return errors.New("registry ripper command has no executable")
	}
	r.argv = argv
	return nil
}

func (r *RegistryAnalyzer) Process(ctx context.Context, ds ingest.DataSource, status ingest.StatusHelper) ingest.Result {
	defer r.fireProduced()

	if r.argv == nil {
		r.log.Warnw("No registry ripper configured", "setting", "recent_activity.registry.ripper_command")
		r.errorf("Unable to run RegRipper: no ripper command configured.")
		return ingest.Success()
	}

	tempDir, err := TempPath(r.services.Case, r.name)
	if err != nil {
		return ingest.Failed(ingest.KindUnitFatal, err, "failed to create temp directory")
	}
	outputDir, err := OutputPath(r.services.Case, r.name)
	if err != nil {
		return ingest.Failed(ingest.KindUnitFatal, err, "failed to create output directory")
	}

	for _, h := range hives {
		if status.IsCancelled() {
			break
		}

		files, err := ds.FindFiles(ctx, h.name, h.parent)
		if err != nil {
			r.log.Warnw("Failed to find hive", "hive", h.name, logger.FieldError, err)
			r.errorf("Error querying for %s registry files.", h.name)
			continue
		}

		for _, f := range files {
			if status.IsCancelled() {
				break
			}
			if f.Size() == 0 {
				continue
			}
			if !r.processHive(ctx, f, h, tempDir, outputDir) {
				// The tool could not be started; later hives would fail the same way
				return ingest.Success()
			}
		}
	}
	return ingest.Success()
}

// processHive reports false only when the tool could not be started.
func (r *RegistryAnalyzer) processHive(ctx context.Context, f ingest.File, h hive, tempDir, outputDir string) bool {
	hivePath, err := copyToTemp(f, tempDir)
	if err != nil {
		r.log.Warnw("Failed to copy hive", logger.FieldFile, filePath(f), logger.FieldError, err)
		r.errorf("Error writing temp registry file %s.", filePath(f))
		return true
	}
	defer os.Remove(hivePath)

	report, started, err := r.ripHive(ctx, hivePath, h.profile)
	if !started {
		r.log.Errorw("Failed to start registry ripper",
			"command", r.argv[0],
			logger.FieldError, err,
		)
		r.errorf("Unable to run RegRipper (%s): %v", r.argv[0], err)
		return false
	}
	if err != nil {
		r.log.Warnw("Registry ripper failed", logger.FieldFile, filePath(f), logger.FieldError, err)
		r.errorf("Failed to analyze registry file %s.", filePath(f))
		return true
	}

	reportPath := filepath.Join(outputDir, safeFileName(f.ID())+"-"+h.profile+".txt")
	if err := os.WriteFile(reportPath, report, am.DefaultFilePermissions); err != nil {
		r.log.Warnw("Failed to save registry report", logger.FieldPath, reportPath, logger.FieldError, err)
		r.errorf("Failed to save report for %s.", filePath(f))
	}

	if h.profile == "software" {
		r.addOSInfo(ctx, f, report)
	}
	return true
}

// ripHive runs the tool over one hive and returns its standard output.
// started is false when the executable could not be launched.
func (r *RegistryAnalyzer) ripHive(ctx context.Context, hivePath, profile string) (report []byte, started bool, err error) {
	argv := make([]string, len(r.argv))
	for i, arg := range r.argv {
		arg = strings.ReplaceAll(arg, "{hive}", hivePath)
		argv[i] = strings.ReplaceAll(arg, "{profile}", profile)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, false, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, true, errors.WithDetail(err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), true, nil
}

func (r *RegistryAnalyzer) addOSInfo(ctx context.Context, f ingest.File, report []byte) {
	info := parseOSInfo(report)

	var attrs []blackboard.Attribute
	for _, key := range []string{"productname", "currentversion", "registeredowner", "registeredorganization"} {
		if v, ok := info[key]; ok {
			attrs = append(attrs, r.str(osInfoKeys[key], v))
		}
	}
	r.addArtifact(ctx, f.ID(), blackboard.ArtifactOSInfo, attrs)
}

// parseOSInfo reads "Key = value" or "Key: value" lines of a software
// profile report. The first occurrence of a key wins.
func parseOSInfo(report []byte) map[string]string {
	info := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(report))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		sep := strings.IndexAny(line, "=:")
		if sep <= 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:sep]))
		value := strings.TrimSpace(line[sep+1:])
		if _, wanted := osInfoKeys[key]; !wanted || value == "" {
			continue
		}
		if _, seen := info[key]; !seen {
			info[key] = value
		}
	}
	return info
}
