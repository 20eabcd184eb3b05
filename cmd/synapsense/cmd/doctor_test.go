package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCmd_JSON(t *testing.T) {
	// Given: a fresh project
	root := newTestProject(t)

	// When: running the checks as JSON
	out, err := runCmd(t, root, "doctor", "--json")

	// Then: every check is reported; disk space depends on the host
	var report doctorJSON
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	if err != nil {
		assert.ErrorIs(t, err, errDoctorFailed)
		assert.Equal(t, "failed", report.Status)
	}

	names := make(map[string]string, len(report.Checks))
	for _, c := range report.Checks {
		names[c.Name] = c.Status
	}
	assert.Len(t, report.Checks, 6)
	assert.Equal(t, "PASS", names["config"])
	assert.Equal(t, "PASS", names["codecs"])
	assert.Contains(t, names, "disk_space")
	assert.Contains(t, names, "file_descriptors")
}

func TestDoctorCmd_Text(t *testing.T) {
	root := newTestProject(t)

	out, _ := runCmd(t, root, "doctor")

	assert.Contains(t, out, "config")
	assert.Contains(t, out, "codecs")
}
