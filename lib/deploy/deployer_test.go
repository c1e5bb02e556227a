// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/gearbox/lib/artifactstore"
	"github.com/bureau-foundation/gearbox/lib/clock"
	"github.com/bureau-foundation/gearbox/lib/databag"
	"github.com/bureau-foundation/gearbox/lib/release"
	"github.com/bureau-foundation/gearbox/lib/rendercontext"
	"github.com/bureau-foundation/gearbox/lib/testutil"
	"github.com/bureau-foundation/gearbox/lib/tree"
)

var deployTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	appDir   string
	cache    string
	bags     string
	deployer *Deployer
}

func newFixture(t *testing.T, node map[string]any) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		appDir: filepath.Join(root, "apps"),
		cache:  filepath.Join(root, "cache"),
		bags:   filepath.Join(root, "bags"),
	}
	records := &databag.Store{Root: f.bags}
	f.deployer = &Deployer{
		AppDir:    f.appDir,
		Node:      tree.MustFromAny(node),
		Artifacts: &artifactstore.Store{LocalPath: f.cache},
		Records:   records,
		Context:   &rendercontext.Builder{Records: records},
		Clock:     clock.Fake(deployTime),
	}
	return f
}

func (f *fixture) record(t *testing.T, application, content string) {
	t.Helper()
	testutil.WriteFile(t, filepath.Join(f.bags, RecordBag, application+".json"), []byte(content))
}

func (f *fixture) artifact(t *testing.T, application, version string, files map[string]string) {
	t.Helper()
	testutil.WriteTarball(t, filepath.Join(f.cache, application, version+".tar.gz"), testutil.Files(files)...)
}

func TestDeployLocalArtifact(t *testing.T) {
	f := newFixture(t, map[string]any{"foo": map[string]any{"port": 80}})
	f.record(t, "foo", `{}`)
	f.artifact(t, "foo", "1.2.3", map[string]string{
		"gbtemplate/app.ini.mustache": "port={{port}}",
		"bin/run":                     "#!/bin/sh\n",
	})

	result, err := f.deployer.Deploy(context.Background(), Request{Application: "foo", Version: "1.2.3"})
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	home := filepath.Join(f.appDir, "foo")
	if got := testutil.ReadFile(t, filepath.Join(home, "versions", "1.2.3", "gbconfig", "app.ini")); got != "port=80" {
		t.Errorf("app.ini = %q, want %q", got, "port=80")
	}
	target, err := os.Readlink(filepath.Join(home, "current"))
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != filepath.Join("versions", "1.2.3") {
		t.Errorf("current -> %s, want versions/1.2.3", target)
	}
	for _, subdirectory := range []string{"uwsgi", "nginx", "upstart"} {
		if _, err := os.Stat(filepath.Join(home, "versions", "1.2.3", "gbconfig", subdirectory)); err != nil {
			t.Errorf("gbconfig/%s missing: %v", subdirectory, err)
		}
	}
	if !result.Extracted || result.Artifact.Source != artifactstore.SourceLocal {
		t.Errorf("result = %+v", result)
	}
	if result.Previous != "" {
		t.Errorf("Previous = %q, want empty for a first deployment", result.Previous)
	}

	receipt, err := ReadReceipt(mustLayout(t, f.appDir, "foo"))
	if err != nil {
		t.Fatalf("ReadReceipt: %v", err)
	}
	if receipt == nil || receipt.Version != "1.2.3" || !receipt.DeployedAt.Equal(deployTime) {
		t.Fatalf("receipt = %+v", receipt)
	}
	if receipt.Digest == "" || len(receipt.Outputs) != 1 {
		t.Errorf("receipt digest %q outputs %v", receipt.Digest, receipt.Outputs)
	}
}

func TestDeployWithoutSourceLeavesPointer(t *testing.T) {
	f := newFixture(t, nil)
	f.record(t, "foo", `{}`)
	f.artifact(t, "foo", "1.0.0", map[string]string{"gbtemplate/a.mustache": "v1"})
	if _, err := f.deployer.Deploy(context.Background(), Request{Application: "foo", Version: "1.0.0"}); err != nil {
		t.Fatalf("initial Deploy: %v", err)
	}

	f.deployer.Artifacts = &artifactstore.Store{}
	_, err := f.deployer.Deploy(context.Background(), Request{Application: "foo", Version: "2.0.0"})
	if !errors.Is(err, release.ErrExtraction) {
		t.Fatalf("Deploy error = %v, want ErrExtraction", err)
	}
	var deployError *Error
	if !errors.As(err, &deployError) || deployError.Stage != StageExtract {
		t.Fatalf("error = %#v, want extract stage", err)
	}
	if deployError.Application != "foo" || deployError.Version != "2.0.0" {
		t.Errorf("error names %s %s", deployError.Application, deployError.Version)
	}

	target, _ := os.Readlink(filepath.Join(f.appDir, "foo", "current"))
	if target != filepath.Join("versions", "1.0.0") {
		t.Errorf("current -> %s, want versions/1.0.0", target)
	}
	if _, err := os.Stat(filepath.Join(f.appDir, "foo", "versions", "2.0.0")); !errors.Is(err, os.ErrNotExist) {
		t.Error("version directory created for an unavailable artifact")
	}
}

func TestDeployStrictWithoutSource(t *testing.T) {
	f := newFixture(t, nil)
	f.record(t, "foo", `{}`)
	f.deployer.Artifacts = &artifactstore.Store{Strict: true}

	_, err := f.deployer.Deploy(context.Background(), Request{Application: "foo", Version: "1.0.0"})
	if !errors.Is(err, artifactstore.ErrUnavailable) {
		t.Fatalf("Deploy error = %v, want ErrUnavailable", err)
	}
}

func TestRedeployExtractedVersionWithoutSource(t *testing.T) {
	f := newFixture(t, map[string]any{"foo": map[string]any{"port": 80}})
	f.record(t, "foo", `{}`)
	f.artifact(t, "foo", "1.0.0", map[string]string{"gbtemplate/app.ini.mustache": "port={{port}}"})
	if _, err := f.deployer.Deploy(context.Background(), Request{Application: "foo", Version: "1.0.0"}); err != nil {
		t.Fatalf("initial Deploy: %v", err)
	}

	f.record(t, "foo", `{"port": 9090}`)
	f.deployer.Artifacts = &artifactstore.Store{}
	result, err := f.deployer.Deploy(context.Background(), Request{Application: "foo", Version: "1.0.0"})
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if result.Extracted {
		t.Error("existing version was extracted again")
	}
	path := filepath.Join(f.appDir, "foo", "versions", "1.0.0", "gbconfig", "app.ini")
	if got := testutil.ReadFile(t, path); got != "port=9090" {
		t.Errorf("app.ini = %q, want port=9090", got)
	}
	if result.Previous != filepath.Join("versions", "1.0.0") {
		t.Errorf("Previous = %q", result.Previous)
	}
}

func TestDeploySwitchesVersions(t *testing.T) {
	f := newFixture(t, nil)
	f.record(t, "foo", `{}`)
	f.artifact(t, "foo", "1.0.0", map[string]string{"gbtemplate/v.mustache": "one"})
	f.artifact(t, "foo", "2.0.0", map[string]string{"gbtemplate/v.mustache": "two"})

	for _, version := range []string{"1.0.0", "2.0.0"} {
		if _, err := f.deployer.Deploy(context.Background(), Request{Application: "foo", Version: version}); err != nil {
			t.Fatalf("Deploy %s: %v", version, err)
		}
	}
	if got := testutil.ReadFile(t, filepath.Join(f.appDir, "foo", "current", "gbconfig", "v")); got != "two" {
		t.Errorf("current/gbconfig/v = %q, want two", got)
	}
	receipt, _ := ReadReceipt(mustLayout(t, f.appDir, "foo"))
	if receipt.Previous != filepath.Join("versions", "1.0.0") {
		t.Errorf("receipt previous = %q", receipt.Previous)
	}
}

func TestDeployMissingRecord(t *testing.T) {
	f := newFixture(t, nil)
	f.artifact(t, "foo", "1.0.0", map[string]string{"gbtemplate/v.mustache": "x"})

	_, err := f.deployer.Deploy(context.Background(), Request{Application: "foo", Version: "1.0.0"})
	if !errors.Is(err, rendercontext.ErrDataSource) {
		t.Fatalf("Deploy error = %v, want ErrDataSource", err)
	}
	if !errors.Is(err, databag.ErrNotFound) {
		t.Errorf("Deploy error = %v, want it to wrap ErrNotFound", err)
	}
	if _, statErr := os.Lstat(filepath.Join(f.appDir, "foo", "current")); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("release pointer created despite a context failure")
	}
}

func TestDeployTemplateErrorLeavesPointer(t *testing.T) {
	f := newFixture(t, nil)
	f.record(t, "foo", `{}`)
	f.artifact(t, "foo", "1.0.0", map[string]string{"gbtemplate/v.mustache": "ok"})
	f.artifact(t, "foo", "2.0.0", map[string]string{"gbtemplate/v.mustache": "{{#broken}}"})

	if _, err := f.deployer.Deploy(context.Background(), Request{Application: "foo", Version: "1.0.0"}); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	_, err := f.deployer.Deploy(context.Background(), Request{Application: "foo", Version: "2.0.0"})
	var deployError *Error
	if !errors.As(err, &deployError) || deployError.Stage != StageRender {
		t.Fatalf("error = %v, want render stage", err)
	}
	if deployError.RequiresRemediation() {
		t.Error("render failure flagged as requiring remediation")
	}
	target, _ := os.Readlink(filepath.Join(f.appDir, "foo", "current"))
	if target != filepath.Join("versions", "1.0.0") {
		t.Errorf("current -> %s, want versions/1.0.0", target)
	}
}

func TestCutoverFailureRequiresRemediation(t *testing.T) {
	f := newFixture(t, nil)
	f.record(t, "foo", `{}`)
	f.artifact(t, "foo", "1.0.0", map[string]string{"gbtemplate/v.mustache": "x"})
	if err := os.MkdirAll(filepath.Join(f.appDir, "foo", "current"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := f.deployer.Deploy(context.Background(), Request{Application: "foo", Version: "1.0.0"})
	var deployError *Error
	if !errors.As(err, &deployError) || deployError.Stage != StageCutover {
		t.Fatalf("error = %v, want cutover stage", err)
	}
	if !deployError.RequiresRemediation() {
		t.Error("cutover failure not flagged for remediation")
	}
	if !errors.Is(err, release.ErrCutover) {
		t.Errorf("error = %v, want ErrCutover", err)
	}
}

func TestRerenderAndPreview(t *testing.T) {
	f := newFixture(t, map[string]any{"foo": map[string]any{"port": 80}})
	f.record(t, "foo", `{}`)
	f.artifact(t, "foo", "1.0.0", map[string]string{
		"gbtemplate/app.ini.mustache": "port={{port}}",
		"gbtemplate/_inc.mustache":    "partial",
	})

	if _, err := f.deployer.Rerender(context.Background(), "foo", "1.0.0"); !errors.Is(err, release.ErrExtraction) {
		t.Fatalf("Rerender before extraction error = %v, want ErrExtraction", err)
	}
	if _, err := f.deployer.Deploy(context.Background(), Request{Application: "foo", Version: "1.0.0"}); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	f.record(t, "foo", `{"port": 81}`)
	preview, err := f.deployer.Preview(context.Background(), "foo", "1.0.0")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(preview.Plan.Mappings) != 1 {
		t.Errorf("plan has %d mappings, want 1", len(preview.Plan.Mappings))
	}
	output := filepath.Join(f.appDir, "foo", "versions", "1.0.0", "gbconfig", "app.ini")
	if got := testutil.ReadFile(t, output); got != "port=80" {
		t.Errorf("Preview wrote output: %q", got)
	}

	rendered, err := f.deployer.Rerender(context.Background(), "foo", "1.0.0")
	if err != nil {
		t.Fatalf("Rerender: %v", err)
	}
	if len(rendered) != 1 {
		t.Errorf("rendered %d files, want 1", len(rendered))
	}
	if got := testutil.ReadFile(t, output); got != "port=81" {
		t.Errorf("app.ini = %q, want port=81", got)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, nil)
	f.record(t, "foo", `{}`)
	f.artifact(t, "foo", "1.0.0", map[string]string{"gbtemplate/v.mustache": "x"})

	status, err := f.deployer.Status("foo")
	if err != nil {
		t.Fatalf("Status before deploy: %v", err)
	}
	if status.Current != "" || status.Receipt != nil || len(status.Versions) != 0 {
		t.Errorf("status before deploy = %+v", status)
	}

	if _, err := f.deployer.Deploy(context.Background(), Request{Application: "foo", Version: "1.0.0"}); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	status, err = f.deployer.Status("foo")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Current != filepath.Join("versions", "1.0.0") {
		t.Errorf("Current = %q", status.Current)
	}
	if len(status.Versions) != 1 || status.Versions[0] != "1.0.0" {
		t.Errorf("Versions = %v", status.Versions)
	}
	if status.Receipt == nil || status.Receipt.Version != "1.0.0" {
		t.Errorf("Receipt = %+v", status.Receipt)
	}
}

func TestRejectsUnsafeNames(t *testing.T) {
	f := newFixture(t, nil)
	for _, request := range []Request{
		{Application: "../etc", Version: "1"},
		{Application: "foo", Version: "../1"},
		{Application: "", Version: "1"},
	} {
		_, err := f.deployer.Deploy(context.Background(), request)
		var deployError *Error
		if !errors.As(err, &deployError) || deployError.Stage != StageLayout {
			t.Errorf("Deploy(%+v) error = %v, want layout stage", request, err)
		}
	}
}
