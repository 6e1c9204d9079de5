package masking

import (
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaskedSecretValue replaces every value under a Secret's data/stringData
// fields.
const MaskedSecretValue = "[MASKED_SECRET_DATA]"

var (
	yamlSecretKind = regexp.MustCompile(`(?m)^kind:\s*Secret\s*$`)
	jsonSecretKind = regexp.MustCompile(`"kind"\s*:\s*"Secret"`)
)

// KubernetesSecretMasker masks the data/stringData payload of Kubernetes
// Secret and SecretList resources (YAML or JSON) while leaving ConfigMaps
// and other kinds untouched — a plain regex sweep can't tell a Secret's
// base64 blob apart from a ConfigMap's, so this needs structural parsing.
type KubernetesSecretMasker struct{}

func (m *KubernetesSecretMasker) Name() string { return "kubernetes_secret" }

func (m *KubernetesSecretMasker) AppliesTo(data string) bool {
	if !strings.Contains(data, "Secret") {
		return false
	}
	return yamlSecretKind.MatchString(data) || jsonSecretKind.MatchString(data)
}

// Mask detects JSON vs YAML and dispatches to the matching parser. Always
// returns the original data untouched on any parse or encode failure.
func (m *KubernetesSecretMasker) Mask(data string) string {
	trimmed := strings.TrimSpace(data)

	// JSON is checked first when the input looks like JSON: feeding JSON
	// through the YAML decoder below would "succeed" but re-serialize as
	// YAML, changing the format of content that wasn't actually YAML.
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		if masked := m.maskJSON(data); masked != data {
			return masked
		}
	}

	if masked := m.maskYAML(data); masked != data {
		return masked
	}

	return data
}

func (m *KubernetesSecretMasker) maskYAML(data string) string {
	dec := yaml.NewDecoder(strings.NewReader(data))
	var docs []map[string]any
	changed := false

	for {
		var doc map[string]any
		err := dec.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return data
		}
		if doc == nil {
			continue
		}
		if maskResource(doc) {
			changed = true
		}
		docs = append(docs, doc)
	}

	if !changed || len(docs) == 0 {
		return data
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return data
		}
	}
	if err := enc.Close(); err != nil {
		return data
	}

	out := strings.TrimRight(buf.String(), "\n")
	if strings.HasSuffix(data, "\n") {
		out += "\n"
	}
	return out
}

func (m *KubernetesSecretMasker) maskJSON(data string) string {
	var obj map[string]any
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return data
	}

	if !maskResource(obj) {
		return data
	}

	result, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return data
	}

	out := string(result)
	if strings.HasSuffix(data, "\n") {
		out += "\n"
	}
	return out
}

// maskResource masks resource in place if it's a Secret, a SecretList, or a
// generic List containing Secret items. Reports whether anything changed.
func maskResource(resource map[string]any) bool {
	kind, _ := resource["kind"].(string)
	switch {
	case kind == "Secret":
		maskDataFields(resource)
		maskAnnotationEmbeddedSecrets(resource)
		return true
	case kind == "SecretList":
		maskItems(resource)
		return true
	case kind == "List" || strings.HasSuffix(kind, "List"):
		return maskSecretItemsInList(resource)
	default:
		return false
	}
}

// maskSecretItemsInList masks only the Secret-kind entries of a generic
// List's items, leaving other kinds (ConfigMap, Pod, ...) untouched.
func maskSecretItemsInList(list map[string]any) bool {
	items, ok := list["items"].([]any)
	if !ok {
		return false
	}
	changed := false
	for _, item := range items {
		itemMap, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if kind, _ := itemMap["kind"].(string); kind == "Secret" || kind == "SecretList" {
			maskDataFields(itemMap)
			maskAnnotationEmbeddedSecrets(itemMap)
			changed = true
		}
	}
	return changed
}

// maskItems masks every item of a SecretList's items array.
func maskItems(secretList map[string]any) {
	items, ok := secretList["items"].([]any)
	if !ok {
		return
	}
	for _, item := range items {
		if itemMap, ok := item.(map[string]any); ok {
			maskDataFields(itemMap)
			maskAnnotationEmbeddedSecrets(itemMap)
		}
	}
}

// maskDataFields blanks every value under the resource's data and
// stringData maps.
func maskDataFields(resource map[string]any) {
	for _, field := range []string{"data", "stringData"} {
		dataMap, ok := resource[field].(map[string]any)
		if !ok {
			continue
		}
		for key := range dataMap {
			dataMap[key] = MaskedSecretValue
		}
	}
}

// maskAnnotationEmbeddedSecrets finds annotations (typically
// kubectl.kubernetes.io/last-applied-configuration) whose string value is
// itself a JSON-encoded Secret manifest, and masks that embedded copy too.
func maskAnnotationEmbeddedSecrets(resource map[string]any) {
	metadata, ok := resource["metadata"].(map[string]any)
	if !ok {
		return
	}
	annotations, ok := metadata["annotations"].(map[string]any)
	if !ok {
		return
	}

	for key, val := range annotations {
		strVal, ok := val.(string)
		if !ok || !strings.Contains(strVal, "Secret") {
			continue
		}

		var embedded map[string]any
		if err := json.Unmarshal([]byte(strVal), &embedded); err != nil {
			continue
		}
		kind, _ := embedded["kind"].(string)
		if kind != "Secret" && kind != "SecretList" {
			continue
		}

		maskDataFields(embedded)
		masked, err := json.Marshal(embedded)
		if err != nil {
			continue
		}
		annotations[key] = string(masked)
	}
}
