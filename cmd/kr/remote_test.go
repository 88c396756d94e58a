package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	in := RemotesConfig{
		Active: "kitchen",
		Remotes: map[string]Remote{
			"kitchen": {URL: "https://recipes.example.com", Token: "tok_abc", NATSURL: "nats://kitchen:4222", GRPCAddr: "recipes.example.com:9090"},
			"local":   {URL: "http://localhost:8080"},
		},
	}
	if err := saveRemotesConfig(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Active != "kitchen" {
		t.Errorf("Active = %q, want %q", got.Active, "kitchen")
	}
	if got.Remotes["kitchen"] != in.Remotes["kitchen"] {
		t.Errorf("kitchen remote = %+v, want %+v", got.Remotes["kitchen"], in.Remotes["kitchen"])
	}
	if got.Remotes["local"].URL != "http://localhost:8080" {
		t.Errorf("local URL = %q", got.Remotes["local"].URL)
	}
}

func TestLoadRemotesConfig_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadRemotesConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Active != "" || len(cfg.Remotes) != 0 {
		t.Errorf("expected empty config, got %+v", cfg)
	}
	if cfg.Remotes == nil {
		t.Error("Remotes map must not be nil")
	}
}

func TestLoadRemotesConfig_Malformed(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path, err := remoteConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("active = [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadRemotesConfig(); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestSaveRemotesConfig_Permissions(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := saveRemotesConfig(RemotesConfig{Remotes: map[string]Remote{}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	path, _ := remoteConfigPath()
	check := func(p string, want os.FileMode) {
		t.Helper()
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if got := info.Mode().Perm(); got != want {
			t.Errorf("%s permissions = %04o, want %04o", p, got, want)
		}
	}
	check(path, 0o600)
	check(filepath.Dir(path), 0o700)
}

func TestRemoteLifecycle(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	mustRun := func(fn func() error) {
		t.Helper()
		if err := fn(); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	remoteAddCmd.SetOut(&buf)
	remoteUseCmd.SetOut(&buf)
	remoteRemoveCmd.SetOut(&buf)

	mustRun(func() error { return remoteAddCmd.RunE(remoteAddCmd, []string{"local", "http://localhost:8080"}) })
	mustRun(func() error { return remoteAddCmd.RunE(remoteAddCmd, []string{"local", "http://localhost:8080"}) }) // upsert
	mustRun(func() error { return remoteUseCmd.RunE(remoteUseCmd, []string{"local"}) })

	cfg, _ := loadRemotesConfig()
	if cfg.Active != "local" {
		t.Fatalf("Active = %q, want %q", cfg.Active, "local")
	}
	if len(cfg.Remotes) != 1 {
		t.Fatalf("got %d remotes after upsert, want 1", len(cfg.Remotes))
	}

	buf.Reset()
	remoteListCmd.SetOut(&buf)
	mustRun(func() error { return remoteListCmd.RunE(remoteListCmd, nil) })
	if !strings.Contains(buf.String(), "* local") {
		t.Errorf("list missing active marker; got:\n%s", buf.String())
	}

	buf.Reset()
	remoteShowCmd.SetOut(&buf)
	mustRun(func() error { return remoteShowCmd.RunE(remoteShowCmd, nil) })
	out := buf.String()
	if !strings.Contains(out, "local (active)") || !strings.Contains(out, "http://localhost:8080") {
		t.Errorf("show missing expected content; got:\n%s", out)
	}

	mustRun(func() error { return remoteUseCmd.RunE(remoteUseCmd, nil) })
	cfg, _ = loadRemotesConfig()
	if cfg.Active != "" {
		t.Errorf("Active should be cleared by 'use' with no args, got %q", cfg.Active)
	}

	mustRun(func() error { return remoteUseCmd.RunE(remoteUseCmd, []string{"local"}) })
	mustRun(func() error { return remoteRemoveCmd.RunE(remoteRemoveCmd, []string{"local"}) })
	cfg, _ = loadRemotesConfig()
	if _, ok := cfg.Remotes["local"]; ok {
		t.Error("remote 'local' should be gone")
	}
	if cfg.Active != "" {
		t.Errorf("Active should be cleared, got %q", cfg.Active)
	}
}

func TestRemoteAddFlags(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	flags := map[string]string{
		"token":       "tok_verylongsecret",
		"nats":        "nats://kitchen:4222",
		"grpc":        "kitchen:9090",
		"description": "test kitchen",
	}
	for name, v := range flags {
		if err := remoteAddCmd.Flags().Set(name, v); err != nil {
			t.Fatalf("set %s: %v", name, err)
		}
	}
	t.Cleanup(func() {
		for name := range flags {
			_ = remoteAddCmd.Flags().Set(name, "")
		}
	})

	remoteAddCmd.SetOut(&bytes.Buffer{})
	remoteUseCmd.SetOut(&bytes.Buffer{})
	if err := remoteAddCmd.RunE(remoteAddCmd, []string{"kitchen", "https://kitchen.example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := remoteUseCmd.RunE(remoteUseCmd, []string{"kitchen"}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	remoteListCmd.SetOut(&buf)
	if err := remoteListCmd.RunE(remoteListCmd, nil); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "tok_verylongsecret") {
		t.Error("full token must not appear in list output")
	}
	if !strings.Contains(buf.String(), "tok_very...") || !strings.Contains(buf.String(), "test kitchen") {
		t.Errorf("unexpected list output:\n%s", buf.String())
	}

	buf.Reset()
	remoteShowCmd.SetOut(&buf)
	if err := remoteShowCmd.RunE(remoteShowCmd, nil); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "tok_verylongsecret") {
		t.Error("full token must not appear in show output")
	}
	for _, want := range []string{"tok_very**********", "nats://kitchen:4222", "kitchen:9090"} {
		if !strings.Contains(out, want) {
			t.Errorf("show missing %q; got:\n%s", want, out)
		}
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		token, fill, want string
	}{
		{"", "...", ""},
		{"short", "*", "short"},
		{"12345678", "*", "12345678"},
		{"123456789ab", "...", "12345678..."},
		{"123456789ab", "*", "12345678***"},
	}
	for _, tc := range tests {
		if got := maskToken(tc.token, tc.fill); got != tc.want {
			t.Errorf("maskToken(%q, %q) = %q, want %q", tc.token, tc.fill, got, tc.want)
		}
	}
}

func TestRemoteErrorCases(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"use unknown", func() error { return remoteUseCmd.RunE(remoteUseCmd, []string{"ghost"}) }},
		{"remove unknown", func() error { return remoteRemoveCmd.RunE(remoteRemoveCmd, []string{"ghost"}) }},
		{"show no active", func() error { return remoteShowCmd.RunE(remoteShowCmd, nil) }},
		{"show unknown", func() error { return remoteShowCmd.RunE(remoteShowCmd, []string{"ghost"}) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			if err := tc.fn(); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestSaveRemotesConfig_ReplacesAtomically(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	for _, url := range []string{"http://a:8080", "http://b:8080"} {
		cfg := RemotesConfig{Remotes: map[string]Remote{"pantry": {URL: url}}}
		if err := saveRemotesConfig(cfg); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	path, _ := remoteConfigPath()
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "remotes.toml" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("state dir holds %v, want only remotes.toml", names)
	}
	cfg, err := loadRemotesConfig()
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Remotes["pantry"].URL; got != "http://b:8080" {
		t.Fatalf("URL = %q, want the second save", got)
	}
}

func TestUpdateRemotes_FailedUpdateIsNotSaved(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if err := saveRemotesConfig(RemotesConfig{Active: "a", Remotes: map[string]Remote{"a": {URL: "http://a"}}}); err != nil {
		t.Fatal(err)
	}

	err := updateRemotes(func(cfg *RemotesConfig) error {
		cfg.Active = ""
		_, err := cfg.lookup("ghost")
		return err
	})
	if err == nil || !strings.Contains(err.Error(), `remote "ghost" not found`) {
		t.Fatalf("err = %v", err)
	}
	cfg, _ := loadRemotesConfig()
	if cfg.Active != "a" {
		t.Fatalf("Active = %q; a failed update must not be written", cfg.Active)
	}
}

func TestRemotesConfigNames(t *testing.T) {
	cfg := RemotesConfig{Remotes: map[string]Remote{"staging": {}, "local": {}, "prod": {}}}
	got := strings.Join(cfg.names(), ",")
	if got != "local,prod,staging" {
		t.Fatalf("names() = %s", got)
	}
}
