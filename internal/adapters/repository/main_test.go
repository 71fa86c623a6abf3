package repository

import (
	"io"
	"os"
	"testing"

	"github.com/okian/scout/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init(logger.WithWriter(io.Discard))
	os.Exit(m.Run())
}
