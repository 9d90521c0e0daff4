package changeset

import (
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

var (
	secretDetector     *detect.Detector
	secretDetectorOnce sync.Once
)

func getSecretDetector() *detect.Detector {
	secretDetectorOnce.Do(func() {
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return
		}
		secretDetector = d
	})
	return secretDetector
}

// scanForSecrets runs gitleaks' default rule set against diff text and
// returns the matched rule IDs. It is the pre-merge gate that keeps a
// changeset carrying a committed credential from reaching Merge's actual
// merge step; a detector construction failure degrades to "nothing found"
// rather than blocking every merge.
func scanForSecrets(diff string) []string {
	d := getSecretDetector()
	if d == nil {
		return nil
	}
	var found []string
	for _, f := range d.DetectString(diff) {
		if f.Secret == "" {
			continue
		}
		found = append(found, f.RuleID)
	}
	return found
}
