// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lifecycle

// Stage is the outcome of one step of a workflow: what ran, what it
// touched, and whether it failed. Detail lines are object names or
// per-object failure notes, presented to the operator verbatim.
type Stage struct {
	Name   string
	Detail []string
	Err    error
}

// Report collects the stage outcomes of one workflow run. Workflows
// halt on the first failed stage, so at most the last stage carries an
// error; batch stages instead record per-object failures in Detail and
// keep going.
type Report struct {
	Title  string
	Stages []Stage
}

func newReport(title string) *Report {
	return &Report{Title: title}
}

func (r *Report) add(name string, err error, detail ...string) {
	r.Stages = append(r.Stages, Stage{Name: name, Detail: detail, Err: err})
}

// OK reports whether every stage completed without error.
func (r *Report) OK() bool {
	for _, s := range r.Stages {
		if s.Err != nil {
			return false
		}
	}
	return true
}

// Err returns the first stage error, if any.
func (r *Report) Err() error {
	for _, s := range r.Stages {
		if s.Err != nil {
			return s.Err
		}
	}
	return nil
}
