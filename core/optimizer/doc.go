// Package optimizer turns an assembled input into a mixed-integer program,
// hands it to a solver backend and extracts the battery schedule.
//
// Sign conventions: grid_power is positive when drawing from the grid,
// batt_power is positive when the battery feeds the bus, charge_power is
// non-positive and discharge_power non-negative. charge_status selects the
// permitted mode (1 charging, 0 discharging) for each timestep.
package optimizer
