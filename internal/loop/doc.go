// Package loop provides the execution context that runs asynchronous
// hardware operations.
//
// A [Loop] owns one worker goroutine that drives a cooperative scheduler.
// Every task submitted to the loop runs as a coroutine on a goroutine of its
// own, holding the loop's single execution baton: no two tasks ever
// execute at the same time, and a task gives the baton back only at an
// explicit suspension point ([Co.Yield], [Co.Sleep], [Co.Await], [Recv]).
//
// # Thread Safety
//
// [Loop.Submit], [Loop.Call], [Loop.Go], [Loop.Stop] and [Loop.Join] may be
// called from any goroutine. [Co] methods may only be called by the task
// that received the Co.
//
// # Lifecycle
//
//	l := loop.New(loop.WithName("hardware"))
//	_ = l.Start()
//	v, err := l.Call(ctx, func(co loop.Co) (any, error) {
//	    if err := co.Sleep(10 * time.Millisecond); err != nil {
//	        return nil, err
//	    }
//	    return 42, nil
//	})
//	l.Join()
//
// Stopping rejects new submissions with [ErrStopped] and fails tasks that
// were queued but never started. Tasks already running are not cancelled;
// the worker exits once the last of them finishes.
package loop
