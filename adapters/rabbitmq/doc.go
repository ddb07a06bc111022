/*
Package rabbitmq provides a RabbitMQ source for the projector.
It consumes a queue with manual acknowledgements, acks each delivery only after it was projected,
dials with exponential retry, and supports optional header propagation via a projection.HeaderPropagator.
*/
package rabbitmq
