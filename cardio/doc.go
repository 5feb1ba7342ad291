/*
	Package cardio provides types, constants, and functions that have no other dependencies
	within cardiowave and can be used by all of its packages.  This includes grid points,
	the error kinds shared by the simulation layers, logging, and the serialization format
	used for stored simulation state.
*/
package cardio
