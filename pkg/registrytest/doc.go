/*
Package registrytest contains framework for automated registry testing.
It can be used to implement unit-tests for registry users in Go using regular
Go conventions.

Usually it's used like this:
  - an Executor is created with NewExecutor, it owns a fresh in-memory
    registry deployed by a new admin account
  - AdminInvoker and/or NewInvoker are then used to perform test invocations
  - if needed NewAccount is used to create appropriate number of accounts for
    the test

Every Executor is independent, nothing is shared between them, so tests can
run in parallel. Higher-order methods provided by Invoker hide the details of
submission and confirmation for the most part, but there are lower-level
methods as well that can be used for specific tasks.
*/
package registrytest
