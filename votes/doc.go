// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package votes reconciles incoming votes with a session's previous vote and
keeps the live tally in step with the durable record.

# Reconciliation

	reconciler := votes.NewReconciler(store, tallyStore, broadcaster)
	res, err := reconciler.Vote(ctx, votes.Request{
		PollID:       pollID,
		PollOptionID: optionID,
		SessionID:    sessionID, // "" on first visit
	})

Outcomes:

  - No previous vote: insert, then increment the option and publish.
  - Same option again: ErrAlreadyVoted, nothing changes.
  - Different option: delete the old row, decrement and publish the old
    option, then insert, increment, and publish the new option.

A request without a session gets a freshly minted one (res.NewSession).
The caller stores it client-side for SessionMaxAge.

# Concurrency

The reconciler holds no locks. The (session, poll) unique constraint in the
durable store is the only serialization point:

  - a racing insert surfaces as ErrConflict (from ErrDuplicateVote)
  - a racing delete of an already-replaced row surfaces as ErrConflict
    (from ErrVoteNotFound) before any decrement happens

Both are safe for the client to retry.

# Failure Handling

Durable write, tally update and broadcast are separate round trips. A
failure part way through is returned to the caller and never retried here,
so the tally can drift from the vote rows. Resyncer repairs this by
recounting votes periodically:

	go votes.NewResyncer(store, tallyStore).Run(ctx, 10*time.Minute)

Once a durable write commits, its tally update and broadcast run detached
from the caller's context, so a browser hanging up cannot skip them.

A resync pass watches the tally key while it counts. A vote that bumps the
tally mid-count makes the pass count again instead of overwriting it. A vote
whose row is counted but whose increment lands after the swap is counted
twice until the next pass, so busy polls settle over more than one pass.
*/
package votes
