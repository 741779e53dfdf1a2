package psget

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	perrors "github.com/matzehuels/pkgferry/pkg/errors"
	"github.com/matzehuels/pkgferry/pkg/nupkg"
	"github.com/matzehuels/pkgferry/pkg/runner"
)

type call struct {
	name string
	args []string
}

func capture(calls *[]call, out string, err error) runner.Func {
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, call{name, args})
		return []byte(out), err
	}
}

func TestQuote(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "'plain'"},
		{"", "''"},
		{"it's", "'it''s'"},
		{`C:\Program Files\Modules`, `'C:\Program Files\Modules'`},
		{"$(Remove-Item x)", "'$(Remove-Item x)'"},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Errorf("Quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestEnsureRepository(t *testing.T) {
	var calls []call
	ps := NewPowerShell(Options{Runner: capture(&calls, "", nil), Logger: log.New(io.Discard)})

	err := ps.EnsureRepository(context.Background(), Repository{Name: "ferry", Location: "/srv/feed", Trusted: true})
	if err != nil {
		t.Fatalf("EnsureRepository() error = %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("runner called %d times", len(calls))
	}
	c := calls[0]
	if c.name != DefaultShell {
		t.Errorf("shell = %s", c.name)
	}
	if strings.Join(c.args[:3], " ") != "-NoProfile -NonInteractive -Command" {
		t.Errorf("args = %v", c.args)
	}
	script := c.args[3]
	for _, want := range []string{
		"Get-PSRepository -Name 'ferry'",
		"Set-PSRepository -Name 'ferry' -SourceLocation '/srv/feed'",
		"Register-PSRepository -Name 'ferry' -SourceLocation '/srv/feed'",
		"-InstallationPolicy Trusted",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}
}

func TestEnsureRepository_Untrusted(t *testing.T) {
	script := RepositoryScript(Repository{Name: "r", Location: "/x"})
	if !strings.Contains(script, "-InstallationPolicy Untrusted") {
		t.Errorf("script = %s", script)
	}
}

func TestEnsureRepository_Invalid(t *testing.T) {
	var calls []call
	ps := NewPowerShell(Options{Runner: capture(&calls, "", nil), Logger: log.New(io.Discard)})
	if err := ps.EnsureRepository(context.Background(), Repository{Name: "r"}); err == nil {
		t.Error("expected error without location")
	}
	if len(calls) != 0 {
		t.Error("runner should not be called")
	}
}

func TestInstall(t *testing.T) {
	var calls []call
	ps := NewPowerShell(Options{Shell: "powershell.exe", Runner: capture(&calls, "", nil), Logger: log.New(io.Discard)})
	id := nupkg.Identity{Name: "Microsoft.Graph.Mail", Version: "2.28.0"}

	if err := ps.Install(context.Background(), id, InstallOptions{Repository: "ferry", Path: "/opt/modules"}); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if err := ps.Install(context.Background(), id, InstallOptions{Repository: "ferry"}); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if calls[0].name != "powershell.exe" {
		t.Errorf("shell = %s", calls[0].name)
	}

	saved := calls[0].args[3]
	want := "Save-Module -Name 'Microsoft.Graph.Mail' -RequiredVersion '2.28.0' -Repository 'ferry' -Path '/opt/modules' -Force"
	if !strings.Contains(saved, want) {
		t.Errorf("save script = %s", saved)
	}
	installed := calls[1].args[3]
	if !strings.Contains(installed, "Install-Module -Name 'Microsoft.Graph.Mail' -RequiredVersion '2.28.0'") ||
		!strings.Contains(installed, "-Repository 'ferry'") {
		t.Errorf("install script = %s", installed)
	}
}

func TestInstall_Failure(t *testing.T) {
	var calls []call
	ps := NewPowerShell(Options{
		Runner: capture(&calls, "No match was found for the specified search criteria", errors.New("exit status 1")),
		Logger: log.New(io.Discard),
	})
	err := ps.Install(context.Background(), nupkg.Identity{Name: "A", Version: "1.0.0"}, InstallOptions{})
	if !perrors.Is(err, perrors.ErrCodeInstallFailed) {
		t.Fatalf("Install() error = %v, want INSTALL_FAILED", err)
	}
	if !strings.Contains(err.Error(), "No match was found") {
		t.Errorf("error should carry shell output: %v", err)
	}
}

func TestInstall_RejectsBadIdentity(t *testing.T) {
	var calls []call
	ps := NewPowerShell(Options{Runner: capture(&calls, "", nil), Logger: log.New(io.Discard)})
	if err := ps.Install(context.Background(), nupkg.Identity{Name: "../x", Version: "1.0.0"}, InstallOptions{}); err == nil {
		t.Error("expected validation error")
	}
	if len(calls) != 0 {
		t.Error("runner should not be called")
	}
}
