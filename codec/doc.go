/*
Package codec maps transport type names to registered message types and decodes JSON payloads
into typed messages. Adapters use it to turn broker deliveries into projection messages before
handing them to a projector; the projector itself never decodes.
*/
package codec
