package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoColorStyles_RenderVerbatim(t *testing.T) {
	// Given: no-colour styles
	styles := NoColorStyles()

	// When/Then: rendering leaves text untouched
	for _, s := range []string{
		styles.Header.Render("DSEC"),
		styles.Dir.Render("DSEC"),
		styles.Label.Render("DSEC"),
	} {
		assert.Equal(t, "DSEC", s)
	}
}

func TestDefaultStyles_ContainText(t *testing.T) {
	// Given: default styles
	styles := DefaultStyles()

	// When: rendering header text
	rendered := styles.Header.Render("Datasets")

	// Then: header contains the text
	assert.Contains(t, rendered, "Datasets")
}

func TestGetStyles(t *testing.T) {
	assert.Equal(t, "x", GetStyles(true).Error.Render("x"))
	assert.Contains(t, GetStyles(false).Error.Render("x"), "x")
}
