package recentactivity

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/trawl/am"
	"github.com/teranos/trawl/blackboard"
	"github.com/teranos/trawl/ingest"
	"github.com/teranos/trawl/ingest/localfs"
	qtest "github.com/teranos/trawl/internal/testing"
)

const (
	chromeVisit  = int64(1300000000)
	firefoxVisit = int64(1400000000)
)

type testEnv struct {
	root   string
	svc    *ingest.Services
	store  *blackboard.SQLStore
	events []blackboard.ModuleDataEvent
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	env := &testEnv{root: filepath.Join(t.TempDir(), "img1")}
	require.NoError(t, os.MkdirAll(env.root, 0755))

	env.store = blackboard.NewSQLStore(qtest.CreateTestDB(t), log)
	bus := blackboard.NewEventBus()
	bus.Subscribe(func(e blackboard.ModuleDataEvent) { env.events = append(env.events, e) })

	caseDir := t.TempDir()
	env.svc = &ingest.Services{
		Blackboard: env.store,
		Events:     bus,
		Inbox:      &ingest.MessageLog{},
		MessageIDs: &ingest.MessageIDs{},
		Case: ingest.Case{
			Name:      "test",
			TempDir:   filepath.Join(caseDir, "temp"),
			OutputDir: filepath.Join(caseDir, "output"),
		},
		Logger: log,
	}
	return env
}

func (e *testEnv) path(rel string) string {
	p := filepath.Join(e.root, filepath.FromSlash(rel))
	_ = os.MkdirAll(filepath.Dir(p), 0755)
	return p
}

func (e *testEnv) write(t *testing.T, rel string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.path(rel), data, 0644))
}

func (e *testEnv) sqlite(t *testing.T, rel string, stmts ...string) {
	t.Helper()
	conn, err := sql.Open("sqlite3", e.path(rel))
	require.NoError(t, err)
	defer conn.Close()
	for _, stmt := range stmts {
		_, err := conn.Exec(stmt)
		require.NoError(t, err, stmt)
	}
}

func (e *testEnv) dataSource(t *testing.T) *localfs.DataSource {
	t.Helper()
	ds, err := localfs.Open(e.root, localfs.Options{})
	require.NoError(t, err)
	return ds
}

func (e *testEnv) artifacts(t *testing.T, artifactType blackboard.ArtifactType) []*blackboard.Artifact {
	t.Helper()
	artifacts, err := e.store.ArtifactsByType(context.Background(), artifactType)
	require.NoError(t, err)
	return artifacts
}

func webkitMicros(unix int64) int64 {
	return (unix + webkitEpochOffset) * 1000000
}

func (e *testEnv) addChrome(t *testing.T) {
	e.sqlite(t, "Users/alice/AppData/Local/Google/Chrome/User Data/Default/History",
		`CREATE TABLE urls (id INTEGER PRIMARY KEY, url TEXT, title TEXT, last_visit_time INTEGER, hidden INTEGER DEFAULT 0)`,
		`INSERT INTO urls (url, title, last_visit_time) VALUES ('https://www.google.com/search?q=forensic+tools&ie=utf-8', 'forensic tools - Google Search', `+itoa(webkitMicros(chromeVisit))+`)`,
		`INSERT INTO urls (url, title, last_visit_time) VALUES ('https://golang.org/doc/', NULL, `+itoa(webkitMicros(chromeVisit+60))+`)`,
		`INSERT INTO urls (url, title, last_visit_time, hidden) VALUES ('https://hidden.example/', 'x', 0, 1)`,
	)
	e.write(t, "Users/alice/AppData/Local/Google/Chrome/User Data/Default/Bookmarks", []byte(`{
		"roots": {
			"bookmark_bar": {"type": "folder", "name": "Bookmarks bar", "children": [
				{"type": "url", "name": "Go", "url": "https://go.dev/", "date_added": "`+itoa(webkitMicros(chromeVisit))+`"}
			]},
			"other": {"type": "folder", "name": "Other", "children": []}
		}
	}`))
}

func (e *testEnv) addFirefox(t *testing.T) {
	e.sqlite(t, "Users/alice/AppData/Roaming/Mozilla/Firefox/Profiles/abcd.default/places.sqlite",
		`CREATE TABLE moz_places (id INTEGER PRIMARY KEY, url TEXT, title TEXT, hidden INTEGER DEFAULT 0)`,
		`CREATE TABLE moz_historyvisits (id INTEGER PRIMARY KEY, place_id INTEGER, visit_date INTEGER)`,
		`CREATE TABLE moz_bookmarks (id INTEGER PRIMARY KEY, fk INTEGER, title TEXT, dateAdded INTEGER)`,
		`INSERT INTO moz_places (id, url, title) VALUES (1, 'https://www.bing.com/search?q=golang&form=QBLH', 'golang - Search')`,
		`INSERT INTO moz_places (id, url, title) VALUES (2, 'https://www.mozilla.org/', 'Mozilla')`,
		`INSERT INTO moz_historyvisits (place_id, visit_date) VALUES (1, `+itoa(firefoxVisit*1000000)+`)`,
		`INSERT INTO moz_bookmarks (fk, title, dateAdded) VALUES (2, 'Mozilla', `+itoa(firefoxVisit*1000000)+`)`,
	)
}

func (e *testEnv) addFavorite(t *testing.T) {
	e.write(t, "Users/alice/Favorites/Example Site.url",
		[]byte("[InternetShortcut]\r\nURL=https://example.com/\r\nIconIndex=0\r\n"))
}

func (e *testEnv) addRecentDocument(t *testing.T) {
	e.write(t, "Users/alice/AppData/Roaming/Microsoft/Windows/Recent/report.docx.lnk",
		buildShellLink(`C:\Users\alice\Documents\report.docx`))
}

func (e *testEnv) addSoftwareHive(t *testing.T) {
	e.write(t, "Windows/System32/config/SOFTWARE", []byte(
		"winver v.20200525\n"+
			"ProductName = Windows 7 Professional\n"+
			"CurrentVersion = 6.1\n"+
			"RegisteredOwner = alice\n"))
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

// buildShellLink builds a .lnk with a LinkInfo local base path.
func buildShellLink(target string) []byte {
	header := make([]byte, lnkHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], lnkHeaderSize)
	binary.LittleEndian.PutUint32(header[0x14:0x18], lnkHasLinkInfo)

	const infoHeader, volumeSize = 28, 16
	base := append([]byte(target), 0)
	infoSize := infoHeader + volumeSize + len(base) + 1

	info := make([]byte, infoHeader)
	binary.LittleEndian.PutUint32(info[0:4], uint32(infoSize))
	binary.LittleEndian.PutUint32(info[4:8], infoHeader)
	binary.LittleEndian.PutUint32(info[8:12], lnkInfoVolumeIDAndLocalBasePath)
	binary.LittleEndian.PutUint32(info[12:16], infoHeader)
	binary.LittleEndian.PutUint32(info[16:20], infoHeader+volumeSize)
	binary.LittleEndian.PutUint32(info[24:28], uint32(infoHeader+volumeSize+len(base)))

	volume := make([]byte, volumeSize)
	binary.LittleEndian.PutUint32(volume[0:4], volumeSize)

	var out bytes.Buffer
	out.Write(header)
	out.Write(info)
	out.Write(volume)
	out.Write(base)
	out.WriteByte(0)
	return out.Bytes()
}

func TestDefaultPipeline_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.addChrome(t)
	env.addFirefox(t)
	env.addFavorite(t)
	env.addRecentDocument(t)
	env.addSoftwareHive(t)

	cfg := &am.Config{}
	cfg.RecentActivity.Registry.RipperCommand = `sh -c 'cat {hive}'`

	registry, err := DefaultRegistry(env.svc, cfg)
	require.NoError(t, err)

	var names []string
	for _, e := range registry.Extractors() {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"Chrome", "Firefox", "Internet Explorer", "Recent Documents", "Search Engine Query Analyzer", "Registry"}, names)

	ctx := context.Background()
	outcome, err := NewModule(env.svc, registry).Run(ctx, env.dataSource(t), ingest.ContextStatus{Ctx: ctx})
	require.NoError(t, err)
	assert.Empty(t, outcome.Errors.Messages())
	assert.False(t, outcome.Cancelled)
	assert.Equal(t, []Presence{
		{Unit: "Chrome", Found: true},
		{Unit: "Firefox", Found: true},
		{Unit: "Internet Explorer", Found: true},
	}, outcome.Presence)

	// Web history: two visible Chrome URLs, one Firefox visit
	history := env.artifacts(t, blackboard.ArtifactWebHistory)
	require.Len(t, history, 3)
	accessed, ok := history[0].Attribute(blackboard.AttrDateTimeAccessed)
	require.True(t, ok)
	assert.Equal(t, chromeVisit, accessed.Int())
	domain, _ := history[0].Attribute(blackboard.AttrDomain)
	assert.Equal(t, "google.com", domain.String())
	_, hasTitle := history[1].Attribute(blackboard.AttrTitle)
	assert.False(t, hasTitle, "NULL titles are not stored")
	ffAccessed, _ := history[2].Attribute(blackboard.AttrDateTimeAccessed)
	assert.Equal(t, firefoxVisit, ffAccessed.Int())

	// Bookmarks: Chrome, Firefox and the IE favorite
	bookmarks := env.artifacts(t, blackboard.ArtifactWebBookmark)
	require.Len(t, bookmarks, 3)
	var progs []string
	for _, b := range bookmarks {
		p, _ := b.Attribute(blackboard.AttrProgName)
		progs = append(progs, p.String())
	}
	assert.ElementsMatch(t, []string{"Chrome", "Firefox", "Internet Explorer"}, progs)
	for _, b := range bookmarks {
		if p, _ := b.Attribute(blackboard.AttrProgName); p.String() == "Internet Explorer" {
			u, _ := b.Attribute(blackboard.AttrURL)
			assert.Equal(t, "https://example.com/", u.String())
			title, _ := b.Attribute(blackboard.AttrTitle)
			assert.Equal(t, "Example Site", title.String())
		}
	}

	recent := env.artifacts(t, blackboard.ArtifactRecentObject)
	require.Len(t, recent, 1)
	path, _ := recent[0].Attribute(blackboard.AttrPath)
	assert.Equal(t, `C:\Users\alice\Documents\report.docx`, path.String())

	// Queries come from the history artifacts created earlier in the run
	queries := env.artifacts(t, blackboard.ArtifactWebSearchQuery)
	require.Len(t, queries, 2)
	got := map[string]string{}
	for _, q := range queries {
		engine, _ := q.Attribute(blackboard.AttrDomain)
		text, _ := q.Attribute(blackboard.AttrText)
		got[engine.String()] = text.String()
	}
	assert.Equal(t, map[string]string{"Google": "forensic tools", "Bing": "golang"}, got)
	assert.Equal(t, history[0].ContentRef, queries[0].ContentRef)

	osInfo := env.artifacts(t, blackboard.ArtifactOSInfo)
	require.Len(t, osInfo, 1)
	prog, _ := osInfo[0].Attribute(blackboard.AttrProgName)
	assert.Equal(t, "Windows 7 Professional", prog.String())
	version, _ := osInfo[0].Attribute(blackboard.AttrVersion)
	assert.Equal(t, "6.1", version.String())
	owner, _ := osInfo[0].Attribute(blackboard.AttrOwner)
	assert.Equal(t, "alice", owner.String())
	_, hasOrg := osInfo[0].Attribute(blackboard.AttrOrganization)
	assert.False(t, hasOrg)

	reports, err := filepath.Glob(filepath.Join(env.svc.Case.OutputDir, PipelineName, "Registry", "*-software.txt"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	fired := map[blackboard.ArtifactType]bool{}
	for _, e := range env.events {
		assert.Equal(t, ModuleName, e.Module)
		fired[e.ArtifactType] = true
	}
	for _, at := range []blackboard.ArtifactType{
		blackboard.ArtifactWebHistory, blackboard.ArtifactWebBookmark, blackboard.ArtifactRecentObject,
		blackboard.ArtifactWebSearchQuery, blackboard.ArtifactOSInfo,
	} {
		assert.True(t, fired[at], "no event for %s", at)
	}
}

func TestDefaultPipeline_NoBrowserData(t *testing.T) {
	env := newTestEnv(t)
	registry, err := DefaultRegistry(env.svc, &am.Config{})
	require.NoError(t, err)

	ctx := context.Background()
	outcome, err := NewModule(env.svc, registry).Run(ctx, env.dataSource(t), ingest.ContextStatus{Ctx: ctx})
	require.NoError(t, err)

	for _, p := range outcome.Presence {
		assert.False(t, p.Found)
	}
	// Only the missing ripper is reported
	assert.Equal(t, []string{"Registry: Unable to run RegRipper: no ripper command configured."}, outcome.Errors.Messages())

	msgs := env.svc.Inbox.(*ingest.MessageLog).Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "Finished img1 - 1 error found", msgs[1].Subject)
}

func TestRegistryAnalyzer_ToolCannotStart(t *testing.T) {
	env := newTestEnv(t)
	env.addSoftwareHive(t)
	env.write(t, "Windows/System32/config/SYSTEM", []byte("system"))

	r := NewRegistryAnalyzer(env.svc, "/nonexistent/rip.pl -r {hive} -f {profile}")
	require.NoError(t, r.Init(context.Background()))

	res := r.Process(context.Background(), env.dataSource(t), ingest.ContextStatus{})
	assert.True(t, res.IsOK())
	require.Len(t, r.ErrorMessages(), 1, "reported once, not per hive")
	assert.Contains(t, r.ErrorMessages()[0], "Unable to run RegRipper")
	assert.False(t, r.FoundData())
}

func TestRegistryAnalyzer_ToolFails(t *testing.T) {
	env := newTestEnv(t)
	env.addSoftwareHive(t)

	r := NewRegistryAnalyzer(env.svc, `sh -c 'exit 3'`)
	require.NoError(t, r.Init(context.Background()))

	res := r.Process(context.Background(), env.dataSource(t), ingest.ContextStatus{})
	assert.True(t, res.IsOK())
	require.Len(t, r.ErrorMessages(), 1)
	assert.Contains(t, r.ErrorMessages()[0], "Failed to analyze registry file")
}

func TestRegistryAnalyzer_BadCommandFailsInit(t *testing.T) {
	env := newTestEnv(t)
	r := NewRegistryAnalyzer(env.svc, `'unterminated {hive}`)
	assert.Error(t, r.Init(context.Background()))
}

func TestChrome_CorruptHistory(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "Users/alice/AppData/Local/Google/Chrome/User Data/Default/History", []byte("not a database at all"))

	c := NewChrome(env.svc)
	res := c.Process(context.Background(), env.dataSource(t), ingest.ContextStatus{})
	assert.True(t, res.IsOK(), "a bad file is a recoverable error")
	require.Len(t, c.ErrorMessages(), 1)
	assert.True(t, strings.HasPrefix(c.ErrorMessages()[0], "Chrome: "))
	assert.False(t, c.FoundData())
}

func TestChrome_NeverVisitedHasNoAccessTime(t *testing.T) {
	env := newTestEnv(t)
	env.sqlite(t, "Users/alice/AppData/Local/Google/Chrome/User Data/Default/History",
		`CREATE TABLE urls (id INTEGER PRIMARY KEY, url TEXT, title TEXT, last_visit_time INTEGER, hidden INTEGER DEFAULT 0)`,
		`INSERT INTO urls (url, title, last_visit_time) VALUES ('https://typed.example/', 'Typed', 0)`,
	)

	c := NewChrome(env.svc)
	require.True(t, c.Process(context.Background(), env.dataSource(t), ingest.ContextStatus{}).IsOK())

	history := env.artifacts(t, blackboard.ArtifactWebHistory)
	require.Len(t, history, 1)
	u, _ := history[0].Attribute(blackboard.AttrURL)
	assert.Equal(t, "https://typed.example/", u.String())
	_, ok := history[0].Attribute(blackboard.AttrDateTimeAccessed)
	assert.False(t, ok, "a zero visit time is not a 1601 timestamp")
}

func TestChrome_EventsInVocabularyOrder(t *testing.T) {
	env := newTestEnv(t)
	env.addChrome(t)

	c := NewChrome(env.svc)
	require.True(t, c.Process(context.Background(), env.dataSource(t), ingest.ContextStatus{}).IsOK())

	require.Len(t, env.events, 2)
	assert.Equal(t, blackboard.ArtifactWebHistory, env.events[0].ArtifactType)
	assert.Equal(t, blackboard.ArtifactWebBookmark, env.events[1].ArtifactType)
}

func TestSearchQueries_ScopedToDataSource(t *testing.T) {
	env := newTestEnv(t)
	env.addChrome(t)
	ctx := context.Background()

	run := func(ds ingest.DataSource) {
		registry, err := DefaultRegistry(env.svc, &am.Config{})
		require.NoError(t, err)
		_, err = NewModule(env.svc, registry).Run(ctx, ds, ingest.ContextStatus{Ctx: ctx})
		require.NoError(t, err)
	}

	run(env.dataSource(t))
	require.Len(t, env.artifacts(t, blackboard.ArtifactWebSearchQuery), 1)

	// A second image sharing the store has no history of its own
	other := filepath.Join(filepath.Dir(env.root), "img2")
	require.NoError(t, os.MkdirAll(other, 0755))
	ds2, err := localfs.Open(other, localfs.Options{})
	require.NoError(t, err)
	run(ds2)

	queries := env.artifacts(t, blackboard.ArtifactWebSearchQuery)
	require.Len(t, queries, 1, "img1 history must not be analyzed again for img2")
	assert.True(t, strings.HasPrefix(queries[0].ContentRef, "img1:"))
}

func TestChrome_TempDirUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Case.TempDir = ""

	res := NewChrome(env.svc).Process(context.Background(), env.dataSource(t), ingest.ContextStatus{})
	assert.False(t, res.IsOK())
	assert.Equal(t, ingest.KindUnitFatal, res.Kind)
}

func TestRecentDocuments_SkipsGarbage(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "Users/alice/Recent/broken.lnk", []byte("garbage"))
	env.addRecentDocument(t)

	r := NewRecentDocuments(env.svc)
	res := r.Process(context.Background(), env.dataSource(t), ingest.ContextStatus{})
	assert.True(t, res.IsOK())
	assert.Empty(t, r.ErrorMessages())
	assert.Len(t, env.artifacts(t, blackboard.ArtifactRecentObject), 1)
}
