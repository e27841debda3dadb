package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/broker"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/routing"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/topic"
)

// routeSpecTokens is the number of tokens a route spec line carries:
// source connection, source pattern, destination connection, destination
// topic and QoS level.
const routeSpecTokens = 5

// TooFewTokensError reports a route spec with fewer tokens than the
// format requires.
type TooFewTokensError struct {
	Required int
	Given    int
}

func (e *TooFewTokensError) Error() string {
	return fmt.Sprintf("route spec needs %d tokens (source-conn source-pattern dest-conn dest-topic qos), got %d",
		e.Required, e.Given)
}

// UnknownConnectionError reports a route spec naming a connection the
// config does not declare.
type UnknownConnectionError struct {
	Name string
}

func (e *UnknownConnectionError) Error() string {
	return fmt.Sprintf("unknown connection %q", e.Name)
}

// QoSSyntaxError reports a QoS token that is not an integer.
type QoSSyntaxError struct {
	Token string
	Err   error
}

func (e *QoSSyntaxError) Error() string {
	return fmt.Sprintf("qos token %q is not a number: %v", e.Token, e.Err)
}

func (e *QoSSyntaxError) Unwrap() error { return e.Err }

// QoSRangeError reports a QoS number outside 0..2.
type QoSRangeError struct {
	Value int
}

func (e *QoSRangeError) Error() string {
	return fmt.Sprintf("qos %d out of range, must be 0, 1 or 2", e.Value)
}

// ParseRouteSpec parses one textual route of the form
//
//	<source-conn> <source-pattern> <dest-conn> <dest-topic> <qos>
//
// into a single-destination route. conns maps declared connection names
// to their IDs. Tokens beyond the fifth are ignored.
//
// The error is one of *TooFewTokensError, *UnknownConnectionError,
// *QoSSyntaxError or *QoSRangeError, so callers can switch on the
// failure kind with errors.As.
func ParseRouteSpec(spec string, conns map[string]broker.ConnID) (routing.Route, error) {
	tokens := strings.Fields(spec)
	if len(tokens) < routeSpecTokens {
		return routing.Route{}, &TooFewTokensError{Required: routeSpecTokens, Given: len(tokens)}
	}

	source, ok := conns[tokens[0]]
	if !ok {
		return routing.Route{}, &UnknownConnectionError{Name: tokens[0]}
	}
	pattern := topic.Parse(tokens[1])

	dest, ok := conns[tokens[2]]
	if !ok {
		return routing.Route{}, &UnknownConnectionError{Name: tokens[2]}
	}
	destTopic := topic.Parse(tokens[3])

	level, err := strconv.Atoi(tokens[4])
	if err != nil {
		return routing.Route{}, &QoSSyntaxError{Token: tokens[4], Err: err}
	}
	qos, err := broker.QoSFromInt(level)
	if err != nil {
		return routing.Route{}, &QoSRangeError{Value: level}
	}

	return routing.Route{
		Source:  source,
		Pattern: pattern,
		Destinations: []routing.Destination{
			{Conn: dest, Topic: destTopic, QoS: qos},
		},
	}, nil
}
