// Package extensions holds the non-standard BPMN extension elements the
// engine understands: assignment rules on user tasks, task definitions on
// service tasks, io mappings and data-update sets on sequence flows.
package extensions

import "strings"

// TIoMapping maps the result of a source expression onto a target variable
// in the owning scope.
type TIoMapping struct {
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
}

// TDataSet is one entry of an updateData extension on a sequence flow.
// The source expression is evaluated against the instance data store at
// transition time and written to the target key.
type TDataSet struct {
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
}

// TAssignmentDefinition carries the human-task assignment rules.
type TAssignmentDefinition struct {
	Assignee        string `xml:"assignee,attr"`
	CandidateGroups string `xml:"candidateGroups,attr"`
}

func (ad TAssignmentDefinition) GetCandidateGroups() []string {
	if strings.TrimSpace(ad.CandidateGroups) == "" {
		return nil
	}
	groups := strings.Split(ad.CandidateGroups, ",")
	for i := range groups {
		groups[i] = strings.TrimSpace(groups[i])
	}
	return groups
}

// TTaskDefinition names the worker type that handles a service task.
type TTaskDefinition struct {
	TypeName string `xml:"type,attr"`
}

// TScriptDefinition configures an inline script task: the variable its
// completion value is routed into plus opaque runner configuration.
type TScriptDefinition struct {
	ResultVariable string      `xml:"resultVariable,attr"`
	Properties     []TProperty `xml:"property"`
}

// TProperty is an opaque key/value configuration entry passed to runners.
type TProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}
