package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turnkey/turnkey/internal/app"
	_ "github.com/turnkey/turnkey/testing"
)

func TestMainReturnsInTestMode(t *testing.T) {
	assert.True(t, app.InTestMode())
	assert.NotPanics(t, main)
}
