package layerio

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/areal-labs/overlay-cli/internal/feature"
)

// AGRManifest maps attribute names to AGR tags, loaded from a YAML sidecar:
//
//	NAME: identity
//	POP: aggregate
//	ELEV: constant
type AGRManifest map[string]string

// ReadAGRManifest loads an AGR manifest file.
func ReadAGRManifest(path string) (AGRManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layerio: read AGR manifest %s", path)
	}
	var m AGRManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "layerio: parse AGR manifest %s", path)
	}
	return m, nil
}

// Apply tags the collection's schema from the manifest. Unknown attribute
// names and unknown tags are errors: a manifest typo must not silently
// leave an attribute untagged.
func (m AGRManifest) Apply(c *feature.Collection) error {
	for name, tag := range m {
		rel, err := feature.ParseRelationship(tag)
		if err != nil {
			return err
		}
		if err := c.Schema.SetAGR(name, rel); err != nil {
			return err
		}
	}
	return nil
}
