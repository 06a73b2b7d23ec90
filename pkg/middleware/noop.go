package middleware

import (
	"context"

	"github.com/peter-kozarec/replay/pkg/common"
)

//goland:noinspection ALL
var (
	NoopBarHdl       = func(context.Context, common.Bar) {}
	NoopOrderHdl     = func(context.Context, common.Order) {}
	NoopOrderRjctHdl = func(context.Context, common.Rejection) {}
	NoopOrderFillHdl = func(context.Context, common.Fill) {}
	NoopCorpActHdl   = func(context.Context, common.CorporateAction) {}
	NoopSnapshotHdl  = func(context.Context, common.Snapshot) {}
)
