// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import "fmt"

// Stage names a step of a deployment.
type Stage string

const (
	StageLayout   Stage = "layout"
	StageArtifact Stage = "artifact"
	StageExtract  Stage = "extract"
	StageRecord   Stage = "record"
	StageContext  Stage = "context"
	StageRender   Stage = "render"
	StageCutover  Stage = "cutover"
)

// Error is a failed deployment stage.
type Error struct {
	Stage       Stage
	Application string
	Version     string
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("deploying %s %s: %s: %v", e.Application, e.Version, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// RequiresRemediation reports whether the failure left the node in a
// state an operator must inspect: the new version is prepared but the
// release pointer was not moved to it.
func (e *Error) RequiresRemediation() bool { return e.Stage == StageCutover }
