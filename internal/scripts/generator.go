// Package scripts renders the shell scripts executed on cluster nodes.
//
// Generation is a pure function of the script kind and its parameters; the
// rest of the system treats the output as opaque text to stage, transfer and
// execute.
package scripts

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Script kinds understood by the generator.
const (
	KindCommonPrep       = "common-prep"
	KindControlPlaneInit = "control-plane-init"
	KindWorkerJoin       = "worker-join"
)

// Parameter keys referenced by the script templates.
const (
	ParamKubernetesVersion = "kubernetes_version"
	ParamPodNetworkCIDR    = "pod_network_cidr"
	ParamServiceCIDR       = "service_cidr"
	ParamAdvertiseAddress  = "advertise_address"
	ParamNodeName          = "node_name"
	ParamJoinCommand       = "join_command"

	// derived from ParamKubernetesVersion, never set by callers
	paramKubernetesMinor = "kubernetes_minor"
)

// Generator renders node configuration scripts from embedded templates.
type Generator struct {
	templates map[string]*template.Template
}

// NewGenerator parses all script templates. Parse errors are programming
// errors, so this panics rather than returning one.
func NewGenerator() *Generator {
	sources := map[string]string{
		KindCommonPrep:       commonPrepTemplate,
		KindControlPlaneInit: controlPlaneInitTemplate,
		KindWorkerJoin:       workerJoinTemplate,
	}

	templates := make(map[string]*template.Template, len(sources))
	for kind, source := range sources {
		templates[kind] = template.Must(
			template.New(kind).Option("missingkey=error").Parse(source),
		)
	}
	return &Generator{templates: templates}
}

// Generate renders the script of the given kind. Referencing a parameter the
// caller did not supply is an error, so incomplete plans fail before any
// remote call is made.
func (g *Generator) Generate(kind string, params map[string]string) (string, error) {
	tmpl, ok := g.templates[kind]
	if !ok {
		return "", fmt.Errorf("unknown script kind %q", kind)
	}

	merged := make(map[string]string, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	if version, ok := merged[ParamKubernetesVersion]; ok {
		merged[paramKubernetesMinor] = minorVersion(version)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, merged); err != nil {
		return "", fmt.Errorf("failed to render %s script: %w", kind, err)
	}
	return buf.String(), nil
}

// minorVersion reduces "1.31.4" (or "v1.31.4") to "1.31" for the package
// repository path, which is published per minor release.
func minorVersion(version string) string {
	version = strings.TrimPrefix(version, "v")
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}
