// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"

	"github.com/bureau-foundation/gearbox/cmd/gearbox/cli"
	"github.com/bureau-foundation/gearbox/lib/databag"
	"github.com/bureau-foundation/gearbox/lib/testutil"
)

// testNode is a node configuration rooted in a temporary directory.
type testNode struct {
	root       string
	configPath string
	appDir     string
	cache      string
	bags       string
}

func newTestNode(t *testing.T, extra string) *testNode {
	t.Helper()
	root := t.TempDir()
	node := &testNode{
		root:       root,
		configPath: filepath.Join(root, "gearbox.yaml"),
		appDir:     filepath.Join(root, "apps"),
		cache:      filepath.Join(root, "cache"),
		bags:       filepath.Join(root, "bags"),
	}
	attributes := filepath.Join(root, "node.yaml")
	testutil.WriteFile(t, attributes, []byte("foo:\n  port: 80\n"))
	testutil.WriteFile(t, filepath.Join(node.bags, "gearbox", "foo.json"), []byte(`{"workers": 4}`))
	testutil.WriteTarball(t, filepath.Join(node.cache, "foo", "1.2.3.tar.gz"), testutil.Files(map[string]string{
		"gbtemplate/app.ini.mustache": "port={{port}} workers={{workers}}",
	})...)

	config := fmt.Sprintf(`environment: development
node:
  attributes_file: %s
  app_dir: %s
  local_path: %s
  set_ownership: false
data_bags:
  root: %s
%s`, attributes, node.appDir, node.cache, node.bags, extra)
	testutil.WriteFile(t, node.configPath, []byte(config))
	return node
}

// run executes the command tree and returns stdout.
func (n *testNode) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	root := newRoot(&app{
		stdin:  strings.NewReader(stdin),
		stdout: &stdout,
		newLogger: func(bool) *slog.Logger {
			return slog.New(slog.NewTextHandler(io.Discard, nil))
		},
	})
	root.Output = io.Discard
	err := root.Execute(context.Background(), append(args, "--config", n.configPath))
	return stdout.String(), err
}

func TestDeployCommand(t *testing.T) {
	node := newTestNode(t, "")

	output, err := node.run(t, "", "deploy", "foo", "1.2.3", "--json")
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	var summary deploySummary
	if err := json.Unmarshal([]byte(output), &summary); err != nil {
		t.Fatalf("parsing deploy output %q: %v", output, err)
	}
	if summary.Source != "local" || !summary.Extracted || len(summary.Rendered) != 1 {
		t.Errorf("summary = %+v", summary)
	}

	compiled := testutil.ReadFile(t, filepath.Join(node.appDir, "foo", "current", "gbconfig", "app.ini"))
	if compiled != "port=80 workers=4" {
		t.Errorf("app.ini = %q", compiled)
	}

	text, err := node.run(t, "", "deploy", "foo", "1.2.3")
	if err != nil {
		t.Fatalf("second deploy: %v", err)
	}
	if !strings.Contains(text, "foo 1.2.3 deployed") {
		t.Errorf("text output = %q", text)
	}
}

func TestDeployCommandRequiresArguments(t *testing.T) {
	node := newTestNode(t, "")
	if _, err := node.run(t, "", "deploy", "foo"); err == nil || !strings.Contains(err.Error(), "expected 2 argument(s)") {
		t.Errorf("deploy with one argument: %v", err)
	}
}

func TestDeployCommandCutoverFailureExitCode(t *testing.T) {
	node := newTestNode(t, "")
	if err := os.MkdirAll(filepath.Join(node.appDir, "foo", "current"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := node.run(t, "", "deploy", "foo", "1.2.3")
	var exitError *cli.ExitError
	if !errors.As(err, &exitError) || exitError.ExitCode() != cli.ExitRemediation {
		t.Fatalf("deploy error = %v, want exit code %d", err, cli.ExitRemediation)
	}
}

func TestDeployCommandOrdinaryFailureExitCode(t *testing.T) {
	node := newTestNode(t, "")
	_, err := node.run(t, "", "deploy", "bar", "1.0.0")
	if err == nil {
		t.Fatal("deploy of an application without a record succeeded")
	}
	var exitError *cli.ExitError
	if errors.As(err, &exitError) {
		t.Errorf("ordinary failure carried exit code %d", exitError.ExitCode())
	}
}

func TestMissingConfiguration(t *testing.T) {
	t.Setenv("GEARBOX_CONFIG", "")
	root := newRoot(&app{stdout: io.Discard, newLogger: func(bool) *slog.Logger { return slog.Default() }})
	err := root.Execute(context.Background(), []string{"status", "foo"})
	if err == nil || !strings.Contains(err.Error(), "GEARBOX_CONFIG") {
		t.Errorf("status without config: %v", err)
	}
}

func TestRenderPlanAndContextCommands(t *testing.T) {
	node := newTestNode(t, "")
	if _, err := node.run(t, "", "render", "foo", "1.2.3"); err == nil {
		t.Error("render before extraction succeeded")
	}
	if _, err := node.run(t, "", "deploy", "foo", "1.2.3"); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	testutil.WriteFile(t, filepath.Join(node.bags, "gearbox", "foo.json"), []byte(`{"workers": 8}`))
	plan, err := node.run(t, "", "plan", "foo", "1.2.3")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !strings.Contains(plan, "app.ini.mustache") || !strings.Contains(plan, "app.ini") {
		t.Errorf("plan output = %q", plan)
	}

	rendered, err := node.run(t, "", "render", "foo", "1.2.3", "--json")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(rendered, `"output"`) {
		t.Errorf("render output = %q", rendered)
	}
	compiled := testutil.ReadFile(t, filepath.Join(node.appDir, "foo", "current", "gbconfig", "app.ini"))
	if compiled != "port=80 workers=8" {
		t.Errorf("app.ini after render = %q", compiled)
	}

	document, err := node.run(t, "", "context", "foo", "1.2.3")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	var view map[string]any
	if err := json.Unmarshal([]byte(document), &view); err != nil {
		t.Fatalf("context output is not JSON: %v\n%s", err, document)
	}
	if view["workers"] != float64(8) || view["application"] != "foo" {
		t.Errorf("view workers=%v application=%v", view["workers"], view["application"])
	}

	yamlDocument, err := node.run(t, "", "context", "foo", "1.2.3", "--tree", "--format", "yaml")
	if err != nil {
		t.Fatalf("context --tree: %v", err)
	}
	if !strings.Contains(yamlDocument, "foo:") || !strings.Contains(yamlDocument, "gearbox:") {
		t.Errorf("yaml tree = %q", yamlDocument)
	}

	if _, err := node.run(t, "", "context", "foo", "1.2.3", "--format", "toml"); err == nil {
		t.Error("context accepted an unknown format")
	}
}

func TestStatusCommand(t *testing.T) {
	node := newTestNode(t, "")
	if _, err := node.run(t, "", "deploy", "foo", "1.2.3"); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	output, err := node.run(t, "", "status", "foo", "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status struct {
		Current  string   `json:"current"`
		Versions []string `json:"versions"`
		Receipt  struct {
			Version string `json:"version"`
		} `json:"receipt"`
	}
	if err := json.Unmarshal([]byte(output), &status); err != nil {
		t.Fatalf("parsing status %q: %v", output, err)
	}
	if status.Current != filepath.Join("versions", "1.2.3") || len(status.Versions) != 1 || status.Receipt.Version != "1.2.3" {
		t.Errorf("status = %+v", status)
	}

	text, err := node.run(t, "", "status", "foo")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"foo", "versions/1.2.3", "local"} {
		if !strings.Contains(text, want) {
			t.Errorf("status output missing %q:\n%s", want, text)
		}
	}

	raw, err := node.run(t, "", "status", "foo", "--raw")
	if err != nil {
		t.Fatalf("status --raw: %v", err)
	}
	if !strings.Contains(raw, `"1.2.3"`) {
		t.Errorf("diagnostic output = %q", raw)
	}
	if _, err := node.run(t, "", "status", "bar", "--raw"); err == nil {
		t.Error("status --raw succeeded without a receipt")
	}
}

func TestSealCommand(t *testing.T) {
	node := newTestNode(t, "")
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}
	recipient := identity.Recipient().String()

	path, err := node.run(t, `{"password": "hunter2"}`, "seal", "secrets", "db", "--recipient", recipient)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if strings.TrimSpace(path) != filepath.Join(node.bags, "secrets", "db.age") {
		t.Errorf("seal wrote %q", path)
	}

	identityFile := filepath.Join(node.root, "identity.txt")
	testutil.WriteFile(t, identityFile, []byte(identity.String()+"\n"))
	store := &databag.Store{Root: node.bags, IdentityFile: identityFile}
	value, err := store.LoadEncrypted("secrets", "db", "")
	if err != nil {
		t.Fatalf("LoadEncrypted: %v", err)
	}
	if password, _ := value.Lookup("password"); password.Raw() != "hunter2" {
		t.Errorf("password = %v", password.Raw())
	}

	input := filepath.Join(node.root, "plain.json")
	testutil.WriteFile(t, input, []byte(`{"token": "abc"}`))
	if _, err := node.run(t, "", "seal", "secrets", "api", "-r", recipient, "--input", input); err != nil {
		t.Fatalf("seal --input: %v", err)
	}

	if _, err := node.run(t, `{"a": 1}`, "seal", "secrets", "db"); err == nil {
		t.Error("seal without recipients succeeded")
	}
	if _, err := node.run(t, "", "seal", "secrets", "db", "-r", recipient); err == nil {
		t.Error("seal with empty plaintext succeeded")
	}
	if _, err := node.run(t, "[1, 2]", "seal", "secrets", "db", "-r", recipient); err == nil {
		t.Error("seal accepted a non-mapping record")
	}
}

const inventoryYAML = `nodes:
  - name: db1
    environment: development
    roles: [database]
    attributes:
      ipaddress: 10.0.0.1
  - name: db2
    environment: production
    roles: [database]
`

func TestInventoryCommands(t *testing.T) {
	database := filepath.Join(t.TempDir(), "topology.db")
	node := newTestNode(t, fmt.Sprintf("topology:\n  backend: sqlite\n  path: %s\n", database))
	inventory := filepath.Join(node.root, "inventory.yaml")
	testutil.WriteFile(t, inventory, []byte(inventoryYAML))

	output, err := node.run(t, "", "inventory", "import", inventory)
	if err != nil {
		t.Fatalf("inventory import: %v", err)
	}
	if !strings.Contains(output, "imported 2 node(s)") {
		t.Errorf("import output = %q", output)
	}

	found, err := node.run(t, "", "inventory", "search", "--role", "database", "--json")
	if err != nil {
		t.Fatalf("inventory search: %v", err)
	}
	var nodes []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(found), &nodes); err != nil {
		t.Fatalf("parsing search output %q: %v", found, err)
	}
	if len(nodes) != 1 || nodes[0].Name != "db1" {
		t.Errorf("search in development = %+v, want db1 only", nodes)
	}

	all, err := node.run(t, "", "inventory", "search", "--role", "database", "--all-environments")
	if err != nil {
		t.Fatalf("inventory search --all-environments: %v", err)
	}
	if !strings.Contains(all, "db1") || !strings.Contains(all, "db2") || !strings.Contains(all, "roles:database") {
		t.Errorf("search output = %q", all)
	}

	if _, err := node.run(t, "", "inventory", "search"); err == nil {
		t.Error("search without --role succeeded")
	}
}

func TestInventoryImportRequiresSQLite(t *testing.T) {
	node := newTestNode(t, "")
	inventory := filepath.Join(node.root, "inventory.yaml")
	testutil.WriteFile(t, inventory, []byte(inventoryYAML))

	if _, err := node.run(t, "", "inventory", "import", inventory); err == nil {
		t.Error("import without a sqlite backend or --database succeeded")
	}
	database := filepath.Join(node.root, "explicit.db")
	if _, err := node.run(t, "", "inventory", "import", inventory, "--database", database); err != nil {
		t.Fatalf("import --database: %v", err)
	}
	if _, err := os.Stat(database); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	var stdout bytes.Buffer
	root := newRoot(&app{stdout: &stdout})
	if err := root.Execute(context.Background(), []string{"version"}); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "gearbox ") {
		t.Errorf("version output = %q", stdout.String())
	}
}
