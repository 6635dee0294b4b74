// Package domain models the climate-driven malaria risk pipeline: ward
// centroids, NASA POWER daily climate records, the join that puts them back
// onto wards, and the feature alignment that feeds a pretrained model.
//
// # Data Source
//
// Climate values come from the NASA POWER daily point API
// (https://power.larc.nasa.gov/api/temporal/daily/point), community "RE",
// one request per ward centroid and date. Three parameters are requested:
//
//	T2M          temperature at 2 m, °C
//	RH2M         relative humidity at 2 m, %
//	PRECTOTCORR  bias-corrected total precipitation, mm/day
//
// With format=CSV the response is a metadata block terminated by a line
// containing "-END HEADER-", followed by a regular CSV table:
//
//	-BEGIN HEADER-
//	NASA/POWER CERES/MERRA2 Native Resolution Daily Data
//	...
//	-END HEADER-
//	YEAR,MO,DY,T2M,RH2M,PRECTOTCORR
//	2024,1,1,25.31,60.12,0.5
//
// POWER uses -999 as its fill value. Fill values are kept as NaN on
// [ClimateRecord] and are treated as missing by [MergeClimate].
//
// # Canonical Feature Names
//
// The model was trained on ward-level columns named after the original
// survey data, not after the POWER parameters:
//
//	PRECTOTCORR → Rainfall
//	T2M         → LST (land surface temperature proxy)
//	RH2M        → Relative_H
//
// # Coordinate Identity
//
// A ward's centroid is its identity for the whole run. Centroids are compared
// bit for bit (see [Coord]); two wards whose centroids differ in the last
// binary digit are fetched separately. No tolerance-based clustering is done.
//
// # Feature Order
//
// The fitted scaler records the column order it was trained with. Rows are
// always re-laid out in that order by [Align] before scaling; a linear
// transform applied to columns in the wrong order silently gives wrong
// predictions.
package domain
