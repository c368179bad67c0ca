/*
Package eventbus provides an in-process publish/subscribe message bus.

Listener values register handler methods against one or more message types by
implementing HandlerSource; publishers call Publish or PublishAsync with one to
three messages (or a slice for fan-out), and the bus dispatches to every
registered handler whose declared parameter types match the published values,
according to the configured Matcher.

# Basic usage

	type Greeted struct{ Name string }

	type Greeter struct{}

	func (Greeter) Handlers() []eventbus.HandlerSpec {
	    return []eventbus.HandlerSpec{eventbus.Handles("OnGreeted")}
	}

	func (Greeter) OnGreeted(g Greeted) {
	    fmt.Println("hello,", g.Name)
	}

	bus := eventbus.NewBus(eventbus.DefaultBusConfig)
	bus.Subscribe(Greeter{})
	bus.Publish(context.Background(), Greeted{Name: "ada"})

# Design

The core is a Subscription Manager built around a single-writer concurrency
discipline: Subscribe and Unsubscribe take an exclusive lock and are mutually
exclusive with each other; Publish takes a shared lock and is lock-light. Two
cache layers (super-type closures and slice/var-arg closures) are invalidated
on every write and rebuilt lazily by whichever reader needs them next.
*/
package eventbus
