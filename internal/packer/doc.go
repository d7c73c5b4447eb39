// Package packer implements best-candidate circle packing. A BestCandidate
// packer is pulled one circle at a time with Next: each call samples k
// non-overlapping candidates at the current radius and keeps the one farthest
// from every placed circle. The radius shrinks and k grows as levels fill up
// or run out of room, until the minimum radius or the total cap is reached.
package packer
