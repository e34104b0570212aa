package profiler

import (
	"fmt"
	"math/rand"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/psantana5/buildtime-profiler/pkg/models"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

func newTestProfiler() *Profiler {
	return New(Options{Clock: func() time.Time { return epoch }})
}

func module(artifact string) *models.Module {
	return &models.Module{GroupID: "com.example", ArtifactID: artifact, Version: "1.0", Name: strings.ToUpper(artifact)}
}

func goal(plugin, name, phase string) *models.Goal {
	return &models.Goal{
		GroupID:     "org.apache.maven.plugins",
		ArtifactID:  plugin,
		Version:     "3.0",
		Goal:        name,
		ExecutionID: "default-" + name,
		Phase:       phase,
	}
}

func runGoal(p *Profiler, mod *models.Module, g *models.Goal, start, stop int) {
	p.OnEvent(models.Event{Type: models.EventGoalStarted, Timestamp: at(start), Module: mod, Goal: g})
	p.OnEvent(models.Event{Type: models.EventGoalSucceeded, Timestamp: at(stop), Module: mod, Goal: g})
}

// two modules: A compiles in 120ms and tests in 300ms, B compiles in 50ms
func scenario(p *Profiler) (a, b *models.Module) {
	a, b = module("a"), module("b")
	compile := goal("maven-compiler-plugin", "compile", "compile")
	test := goal("maven-surefire-plugin", "test", "test")

	p.OnEvent(models.Event{Type: models.EventDiscoveryStarted, Timestamp: at(0)})
	p.OnEvent(models.Event{Type: models.EventSessionStarted, Timestamp: at(15), Project: a})

	p.OnEvent(models.Event{Type: models.EventModuleStarted, Timestamp: at(20), Module: a})
	p.OnEvent(models.Event{Type: models.EventModuleStarted, Timestamp: at(20), Module: b})
	// B reports its compile first, A's test start arrives before A's compile ends
	runGoal(p, b, compile, 25, 75)
	p.OnEvent(models.Event{Type: models.EventGoalStarted, Timestamp: at(30), Module: a, Goal: compile})
	p.OnEvent(models.Event{Type: models.EventModuleSucceeded, Timestamp: at(80), Module: b})
	p.OnEvent(models.Event{Type: models.EventGoalSucceeded, Timestamp: at(150), Module: a, Goal: compile})
	runGoal(p, a, test, 150, 450)
	p.OnEvent(models.Event{Type: models.EventModuleSucceeded, Timestamp: at(460), Module: a})

	p.OnEvent(models.Event{Type: models.EventSessionEnded, Timestamp: at(470), Reactor: []models.Module{*a, *b}})
	return a, b
}

func TestPhaseScenario(t *testing.T) {
	p := newTestProfiler()
	a, b := scenario(p)

	if got := p.PhaseTimer().TimeForPhase("compile"); got != 170*time.Millisecond {
		t.Errorf("TimeForPhase(compile) = %v, want 170ms", got)
	}
	if got := p.PhaseTimer().TimeForPhase("test"); got != 300*time.Millisecond {
		t.Errorf("TimeForPhase(test) = %v, want 300ms", got)
	}
	if got := p.PhaseTimer().TimeForModuleAndPhase(a.Key(), "compile"); got != 120*time.Millisecond {
		t.Errorf("A compile = %v, want 120ms", got)
	}
	if p.PhaseTimer().HasTimeForModuleAndPhase(b.Key(), "test") {
		t.Error("B never ran test")
	}

	phases := p.Phases()
	if strings.Join(phases, ",") != "compile,test" {
		t.Errorf("Phases() = %v, want [compile test]", phases)
	}
}

func TestTimeForPhaseIsSumOverModules(t *testing.T) {
	p := newTestProfiler()
	mods := []*models.Module{module("a"), module("b"), module("c"), module("d")}
	phases := []string{"compile", "test", "package", "custom-phase"}

	r := rand.New(rand.NewSource(7))
	for _, mod := range mods {
		offset := 0
		for _, phase := range phases {
			if r.Intn(3) == 0 {
				continue
			}
			for g := 0; g < 1+r.Intn(3); g++ {
				d := 1 + r.Intn(200)
				runGoal(p, mod, goal(fmt.Sprintf("plugin-%d", g), "run", phase), offset, offset+d)
				offset += d
			}
		}
	}

	for _, phase := range phases {
		var sum time.Duration
		for _, mod := range mods {
			sum += p.PhaseTimer().TimeForModuleAndPhase(mod.Key(), phase)
		}
		if got := p.PhaseTimer().TimeForPhase(phase); got != sum {
			t.Errorf("TimeForPhase(%s) = %v, sum over modules = %v", phase, got, sum)
		}
	}
}

func TestTransferScenario(t *testing.T) {
	p := newTestProfiler()
	tr := &models.Transfer{Coordinate: "junit:junit:4.13.2:jar"}

	p.OnEvent(models.Event{Type: models.EventArtifactDownloading, Timestamp: at(100), Transfer: tr})
	p.OnEvent(models.Event{Type: models.EventArtifactDownloaded, Timestamp: at(140),
		Transfer: &models.Transfer{Coordinate: tr.Coordinate, Size: 2048}})

	out, err := p.Report()
	if err != nil {
		t.Fatalf("Report() error: %v", err)
	}
	if !strings.Contains(out, "Download summary:\n      40 ms : junit:junit:4.13.2:jar\n      40 ms, 2048 bytes\n") {
		t.Errorf("download section missing or malformed:\n%s", out)
	}
	if strings.Contains(out, "Deployment summary:") || strings.Contains(out, "Installation summary:") {
		t.Errorf("empty transfer sections should be omitted:\n%s", out)
	}
}

func TestTransferRouting(t *testing.T) {
	tests := []struct {
		begin, end models.EventType
		title      string
		path       string
	}{
		{models.EventArtifactInstalling, models.EventArtifactInstalled, "Installation summary:", "install"},
		{models.EventArtifactDownloading, models.EventArtifactDownloaded, "Download summary:", "download"},
		{models.EventArtifactDeploying, models.EventArtifactDeployed, "Deployment summary:", "deploy"},
		{models.EventMetadataInstalling, models.EventMetadataInstalled, "Metadata installation summary:", "metadata.install"},
		{models.EventMetadataDownloading, models.EventMetadataDownloaded, "Metadata download summary:", "metadata.download"},
		{models.EventMetadataDeploying, models.EventMetadataDeployed, "Metadata deployment summary:", "metadata.deployment"},
	}
	paths := make([]string, 0, len(tests))
	for _, tt := range tests {
		paths = append(paths, tt.path)
	}

	for _, tt := range tests {
		t.Run(string(tt.end), func(t *testing.T) {
			p := newTestProfiler()
			p.OnEvent(models.Event{Type: tt.begin, Timestamp: at(100),
				Transfer: &models.Transfer{Coordinate: "g:a:1:jar", Repository: "central"}})
			p.OnEvent(models.Event{Type: tt.end, Timestamp: at(140),
				Transfer: &models.Transfer{Coordinate: "g:a:1:jar", Repository: "central", Size: 512}})

			out, err := p.Report()
			if err != nil {
				t.Fatalf("Report() error: %v", err)
			}
			want := "\n" + tt.title + "\n      40 ms : g:a:1:jar (central)\n      40 ms, 512 bytes\n"
			if !strings.Contains(out, want) {
				t.Errorf("expected section %q in:\n%s", tt.title, out)
			}
			for _, other := range tests {
				if other.title != tt.title && strings.Contains(out, "\n"+other.title+"\n") {
					t.Errorf("unexpected section %q in:\n%s", other.title, out)
				}
			}

			doc, err := p.Document()
			if err != nil {
				t.Fatalf("Document() error: %v", err)
			}
			for _, path := range paths {
				v, ok := doc.Lookup(path + ".time")
				if !ok {
					t.Fatalf("document has no %s.time", path)
				}
				wantTime := int64(0)
				if path == tt.path {
					wantTime = 40
				}
				if v != wantTime {
					t.Errorf("%s.time = %v, want %d", path, v, wantTime)
				}
			}
			if v, _ := doc.Lookup(tt.path + ".size"); v != int64(512) {
				t.Errorf("%s.size = %v, want 512", tt.path, v)
			}
		})

		t.Run(string(tt.end)+"/other repository", func(t *testing.T) {
			p := newTestProfiler()
			p.OnEvent(models.Event{Type: tt.begin, Timestamp: at(100),
				Transfer: &models.Transfer{Coordinate: "g:a:1:jar", Repository: "central"}})
			p.OnEvent(models.Event{Type: tt.end, Timestamp: at(140),
				Transfer: &models.Transfer{Coordinate: "g:a:1:jar", Repository: "snapshots", Size: 512}})

			if n := p.Transfers().Count(); n != 0 {
				t.Errorf("Count() = %d, a different repository must not pair", n)
			}
			if got := p.Counters().UnmatchedStops.Load(); got != 1 {
				t.Errorf("UnmatchedStops = %d, want 1", got)
			}
			if out, _ := p.Report(); strings.Contains(out, "\n"+tt.title+"\n") {
				t.Errorf("section %q should be omitted:\n%s", tt.title, out)
			}
		})
	}
}

func TestResolutionEventsAreIgnored(t *testing.T) {
	p := newTestProfiler()
	tr := &models.Transfer{Coordinate: "g:a:1:pom"}
	for _, typ := range []models.EventType{
		models.EventArtifactResolving, models.EventArtifactResolved,
		models.EventArtifactDescriptorMissing, models.EventMetadataInvalid,
		models.EventExecutionRequest, models.EventDependencyResolutionResult,
	} {
		p.OnEvent(models.Event{Type: typ, Timestamp: at(1), Transfer: tr})
	}

	if p.Transfers().Count() != 0 {
		t.Error("resolution events must not create transfers")
	}
	if got := p.Counters().EventsIgnored.Load(); got != 6 {
		t.Errorf("EventsIgnored = %d, want 6", got)
	}
	if p.Diagnostics().Count() != 0 {
		t.Error("ignored events are expected and should not be diagnosed")
	}
}

func TestUnknownAndMalformedEvents(t *testing.T) {
	p := newTestProfiler()

	p.OnEvent(models.Event{Type: "module_paused", Module: module("a")})
	p.OnEvent(models.Event{Type: models.EventModuleStarted}) // no module
	p.OnEvent(models.Event{Type: models.EventGoalSucceeded, Module: module("a"), Goal: goal("x", "y", "compile")})
	p.OnEvent(models.Event{Type: models.EventForkSucceeded})

	c := p.Counters()
	if c.EventsUnknown.Load() != 1 || c.EventsInvalid.Load() != 1 || c.UnmatchedStops.Load() != 2 {
		t.Errorf("unexpected counters %v", c.Snapshot())
	}
	if p.PhaseTimer().HasEvents() {
		t.Error("an unmatched stop must not record a goal")
	}

	recent := p.Diagnostics().GetRecent(1)
	if len(recent) != 1 || recent[0].Event != string(models.EventForkSucceeded) {
		t.Errorf("newest diagnostic = %+v", recent)
	}
}

func TestOnMalformed(t *testing.T) {
	p := newTestProfiler()
	p.OnMalformed("line 7", fmt.Errorf("invalid character 'x'"))

	c := p.Counters()
	if c.EventsReceived.Load() != 1 || c.EventsInvalid.Load() != 1 {
		t.Errorf("unexpected counters %v", c.Snapshot())
	}
	recent := p.Diagnostics().GetRecent(1)
	if len(recent) != 1 || recent[0].Event != "malformed" || recent[0].Key != "line 7" {
		t.Errorf("diagnostic = %+v", recent)
	}
}

func TestDirectGoalsRouteToGoalTimer(t *testing.T) {
	p := newTestProfiler()
	mod := module("a")
	runGoal(p, mod, goal("maven-dependency-plugin", "tree", ""), 0, 25)
	runGoal(p, mod, goal("maven-compiler-plugin", "compile", "compile"), 30, 60)

	if len(p.goals.Entries()) != 1 {
		t.Fatalf("goal timer entries = %d, want 1", len(p.goals.Entries()))
	}
	if p.phaseSet.Len() != 1 {
		t.Errorf("only phased goals add phases, got %v", p.phaseSet.Phases())
	}

	out, _ := p.Report()
	if !strings.Contains(out, "Plugins directly called via goals:") ||
		!strings.Contains(out, "      25 ms : org.apache.maven.plugins:maven-dependency-plugin:3.0:tree (default-tree) (a)") {
		t.Errorf("direct goal section missing:\n%s", out)
	}
}

func TestLastStartWinsThroughRouter(t *testing.T) {
	p := newTestProfiler()
	mod := module("a")
	g := goal("maven-compiler-plugin", "compile", "compile")

	p.OnEvent(models.Event{Type: models.EventGoalStarted, Timestamp: at(0), Module: mod, Goal: g})
	p.OnEvent(models.Event{Type: models.EventGoalStarted, Timestamp: at(40), Module: mod, Goal: g})
	p.OnEvent(models.Event{Type: models.EventGoalSucceeded, Timestamp: at(100), Module: mod, Goal: g})

	if got := p.PhaseTimer().TimeForPhase("compile"); got != 60*time.Millisecond {
		t.Errorf("TimeForPhase = %v, want 60ms", got)
	}
}

func TestForkTracking(t *testing.T) {
	p := newTestProfiler()
	mod := module("a")

	p.OnEvent(models.Event{Type: models.EventModuleStarted, Timestamp: at(0), Module: mod})
	p.OnEvent(models.Event{Type: models.EventForkStarted, Timestamp: at(10)})
	p.OnEvent(models.Event{Type: models.EventForkedProjectStarted, Timestamp: at(12), Module: mod})
	p.OnEvent(models.Event{Type: models.EventForkedProjectSucceeded, Timestamp: at(52), Module: mod})
	p.OnEvent(models.Event{Type: models.EventForkFailed, Timestamp: at(60)})
	p.OnEvent(models.Event{Type: models.EventModuleFailed, Timestamp: at(100), Module: mod})

	if p.fork.Millis() != 50 {
		t.Errorf("fork time = %d, want 50", p.fork.Millis())
	}
	if d, _ := p.forkProjects.Elapsed(mod.Key()); d != 40*time.Millisecond {
		t.Errorf("forked module = %v, want 40ms", d)
	}
	if d, _ := p.modules.Elapsed(mod.Key()); d != 100*time.Millisecond {
		t.Errorf("outer module = %v, want 100ms (fork timer must not collide)", d)
	}

	out, _ := p.Report()
	if !strings.Contains(out, "Fork time: 50 ms") || !strings.Contains(out, "Forked projects:") {
		t.Errorf("fork sections missing:\n%s", out)
	}
}

func TestReportLayout(t *testing.T) {
	p := newTestProfiler()
	scenario(p)

	out, err := p.Report()
	if err != nil {
		t.Fatalf("Report() error: %v", err)
	}

	wantInOrder := []string{
		banner,
		"Project discovery time: 15 ms",
		"Project Build Time (reactor order):",
		"A:\n         120 ms : compile\n         300 ms : test\n",
		"B:\n          50 ms : compile\n",
		"Lifecycle Phase summary:",
		"     170 ms : compile\n     300 ms : test\n",
		"Plugins in lifecycle Phases:",
		"compile:\n      50 ms: org.apache.maven.plugins:maven-compiler-plugin:3.0:compile (default-compile)\n     120 ms:",
	}
	pos := 0
	for _, want := range wantInOrder {
		i := strings.Index(out[pos:], want)
		if i < 0 {
			t.Fatalf("expected %q after offset %d in:\n%s", want, pos, out)
		}
		pos += i + len(want)
	}
	if strings.Contains(out, "Plugins directly called via goals:") {
		t.Error("goal section should be omitted without direct goals")
	}
}

func TestEmptyBuildReport(t *testing.T) {
	p := newTestProfiler()

	out, err := p.Report()
	if err != nil {
		t.Fatalf("Report() error: %v", err)
	}
	if want := banner + "\n" + separator + "\n"; out != want {
		t.Errorf("empty build report = %q, want %q", out, want)
	}
}

func TestReactorFallsBackToStartOrder(t *testing.T) {
	p := newTestProfiler()
	b, a := module("b"), module("a")
	p.OnEvent(models.Event{Type: models.EventModuleStarted, Timestamp: at(0), Module: b})
	p.OnEvent(models.Event{Type: models.EventModuleStarted, Timestamp: at(1), Module: a})

	reactor := p.Reactor()
	if len(reactor) != 2 || reactor[0].ArtifactID != "b" || reactor[1].ArtifactID != "a" {
		t.Errorf("Reactor() = %+v, want start order", reactor)
	}
}

func TestFinishRunsOnce(t *testing.T) {
	p := newTestProfiler()
	scenario(p)

	first := p.Finish()
	runGoal(p, module("late"), goal("late-plugin", "run", "verify"), 500, 510)
	second := p.Finish()

	if first != second {
		t.Error("Finish must return the same frozen result")
	}
	if strings.Join(p.Phases(), ",") != "compile,test" {
		t.Errorf("phases changed after Finish: %v", p.Phases())
	}
	if first.Duration != 455*time.Millisecond {
		t.Errorf("session duration = %v, want 455ms", first.Duration)
	}
	if first.Modules != 2 || first.Goals != 3 {
		t.Errorf("unexpected result shape %+v", first)
	}
}

func TestConcurrentModules(t *testing.T) {
	p := newTestProfiler()
	const workers = 32

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			mod := module(fmt.Sprintf("m%02d", w))
			p.OnEvent(models.Event{Type: models.EventModuleStarted, Timestamp: at(0), Module: mod})
			for i, phase := range rand.Perm(4) {
				runtime.Gosched()
				name := []string{"compile", "test", "package", "install"}[phase]
				runGoal(p, mod, goal("plugin", name, name), i*10, i*10+w+1)
			}
			p.OnEvent(models.Event{Type: models.EventModuleSucceeded, Timestamp: at(100), Module: mod})
		}(w)
	}
	wg.Wait()

	if got := len(p.modules.Entries()); got != workers {
		t.Fatalf("modules = %d, want %d", got, workers)
	}
	if got := strings.Join(p.Phases(), ","); got != "compile,test,package,install" {
		t.Errorf("Phases() = %s", got)
	}
	// every worker spends (w+1)ms per phase
	want := time.Duration(workers*(workers+1)/2) * time.Millisecond
	for _, phase := range []string{"compile", "test", "package", "install"} {
		if got := p.PhaseTimer().TimeForPhase(phase); got != want {
			t.Errorf("TimeForPhase(%s) = %v, want %v", phase, got, want)
		}
	}
	if p.Counters().EventsRouted.Load() != uint64(workers*10) {
		t.Errorf("routed = %d, want %d", p.Counters().EventsRouted.Load(), workers*10)
	}
}

func TestDiagnosticsBounded(t *testing.T) {
	p := New(Options{DiagnosticsSize: 5})
	for i := 0; i < 20; i++ {
		p.OnEvent(models.Event{Type: models.EventSessionEnded})
	}
	if p.Diagnostics().Count() != 5 {
		t.Errorf("diagnostics buffered = %d, want 5", p.Diagnostics().Count())
	}
	if p.Diagnostics().Total() != 20 {
		t.Errorf("diagnostics total = %d, want 20", p.Diagnostics().Total())
	}
}
