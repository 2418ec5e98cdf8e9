package handler

import (
	"github.com/vsrinivas/coyotos/kernel/capx"
	"github.com/vsrinivas/coyotos/kernel/invoke"
)

// EndpointHandler handles opcodes for Endpoint capabilities: recipient/
// payload-match/endpoint-ID configuration and minting a restricted Entry
// capability bound to this endpoint, per spec.md §3.2's EndpointFrame and
// the GLOSSARY's "Entry capability" definition.
type EndpointHandler struct{}

func (EndpointHandler) Invoke(ctx *invoke.Context) invoke.Result {
	ef, ok := ctx.TargetHeader.Endpoint()
	if !ok {
		ctx.Transaction.CommitPoint()
		return invoke.RequestError
	}

	switch ctx.Params.Opcode() {
	case opSetRecipient:
		cap, result := resolveArgCap(ctx)
		if result != invoke.OK {
			ctx.Transaction.CommitPoint()
			return result
		}
		if cap.Type() != capx.TypeProcess && !cap.IsNull() {
			ctx.Transaction.CommitPoint()
			return invoke.RequestError
		}
		ef.Recipient = cap
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opSetPayloadMatch:
		ef.PayloadMatch = ctx.Params.DataWords[1] != 0
		ef.ProtPayload = uint32(ctx.Params.DataWords[2])
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opSetEndpointID:
		ef.EndpointID = ctx.Params.DataWords[1]
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opGetEndpointID:
		ctx.Reply.DataWords[0] = ef.EndpointID
		ctx.Reply.DataCount = 1
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opMakeEntryCap:
		payload := uint32(ctx.Params.DataWords[1])
		restr := capx.Restr(ctx.Params.DataWords[2])
		entry := capx.NewOIDCapability(capx.TypeEntry, restr, 0, payload, ctx.TargetHeader.OID)
		ctx.Reply.CapWords[0] = entry
		ctx.Reply.CapCount = 1
		ctx.Transaction.CommitPoint()
		return invoke.OK

	case opMakeAppNotifier:
		// AppNotice capabilities carry their target Process's OID
		// directly (see appint.go), so the notifier mints against
		// ef.Recipient, not the Endpoint's own OID: delivery posts
		// straight into the recipient process's SoftInts without
		// another indirection through the Endpoint frame.
		if ef.Recipient.IsNull() || ef.Recipient.Type() != capx.TypeProcess {
			ctx.Transaction.CommitPoint()
			return invoke.RequestError
		}
		payload := uint32(ctx.Params.DataWords[1])
		notifier := capx.NewOIDCapability(capx.TypeAppNotice, 0, 0, payload, ef.Recipient.OID())
		ctx.Reply.CapWords[0] = notifier
		ctx.Reply.CapCount = 1
		ctx.Transaction.CommitPoint()
		return invoke.OK

	default:
		return handleBase(ctx)
	}
}
