// Package internal contains helpers not meant for use outside hwcodec.
package internal

import (
	"context"

	"github.com/xaionaro-go/hwcodec/logger"
)

func Assert(
	ctx context.Context,
	mustBeTrue bool,
	format string,
	args ...any,
) {
	if mustBeTrue {
		return
	}

	logger.Panicf(ctx, "assertion failed: "+format, args...)
}
